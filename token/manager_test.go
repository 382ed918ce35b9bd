package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func hs256Config() Config {
	return Config{
		SessionTTL:    time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("test-secret"),
		Issuer:        "idjourney-test",
		Audience:      "client-1",
	}
}

func TestHS256RoundTrip(t *testing.T) {
	mgr, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	tok, err := mgr.CreateSession("user-1", "jane@example.com", "1234567", "j-1", true)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	claims, err := mgr.ParseSession(tok)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected uid %q", claims.UserID)
	}
	if claims.Email != "jane@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.TRN != "1234567" {
		t.Fatalf("unexpected trn %q", claims.TRN)
	}
	if claims.JourneyID != "j-1" {
		t.Fatalf("unexpected journey id %q", claims.JourneyID)
	}
	if !claims.FirstTimeUser {
		t.Fatal("first-time flag was dropped")
	}
	if claims.Issuer != "idjourney-test" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	mgr, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	tok, err := mgr.CreateSession("user-1", "jane@example.com", "", "j-1", false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	tampered := tok[:len(tok)-2] + "xx"
	if _, err := mgr.ParseSession(tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	mgr, err := NewManager(hs256Config())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	tok, err := mgr.CreateSession("user-1", "jane@example.com", "", "j-1", false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	otherCfg := hs256Config()
	otherCfg.PrivateKey = []byte("different-secret")
	other, err := NewManager(otherCfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := other.ParseSession(tok); err == nil {
		t.Fatal("expected verification under a different key to fail")
	}
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	mgr, err := NewManager(Config{
		SessionTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	tok, err := mgr.CreateSession("user-1", "jane@example.com", "", "j-1", false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	claims, err := mgr.ParseSession(tok)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.JourneyID != "j-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{SigningMethod: MethodHS256, PrivateKey: []byte("k")}},
		{"hs256 without key", Config{SessionTTL: time.Hour, SigningMethod: MethodHS256}},
		{"unknown method", Config{SessionTTL: time.Hour, SigningMethod: "rs256", PrivateKey: []byte("k")}},
		{"ed25519 without public key", Config{SessionTTL: time.Hour, SigningMethod: MethodEd25519}},
		{"excessive leeway", Config{SessionTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour}},
	}

	for _, tc := range cases {
		if _, err := NewManager(tc.cfg); err == nil {
			t.Fatalf("%s: expected an error", tc.name)
		}
	}
}
