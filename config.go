package idjourney

import (
	"errors"
	"time"

	"github.com/edugate/idjourney/token"
)

// Config groups the tunable parameters of the journey engine. Zero values
// get sensible defaults at construction; a Config is treated as immutable
// once an Engine has been built from it.
type Config struct {
	Journey   JourneyConfig
	Passcode  PasscodeConfig
	RateLimit RateLimitConfig
	Token     TokenConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JourneyConfig controls journey persistence and expiry.
type JourneyConfig struct {
	// IdleTimeout is how long a journey may sit without activity before
	// it expires and must be restarted.
	IdleTimeout time.Duration
	// Retention is how long expired journeys are kept in the store so a
	// late request can be answered with a distinct "expired" outcome
	// rather than "not found". Must exceed IdleTimeout.
	Retention time.Duration
	// KeyPrefix namespaces journey keys in Redis.
	KeyPrefix string
}

// PasscodeConfig controls one-time passcode generation and expiry.
type PasscodeConfig struct {
	// Digits is the passcode length. The first digit is never zero.
	Digits int
	// TTL is how long a generated code remains valid.
	TTL time.Duration
	// ResendGrace bounds automatic resends: a correct-but-expired code
	// submitted within this window after generation triggers exactly one
	// fresh code; beyond it the submission is treated as incorrect.
	ResendGrace time.Duration
	// KeyPrefix namespaces passcode keys in Redis.
	KeyPrefix string
}

// RateLimitConfig controls the per-client-IP fixed-window budgets for
// passcode operations. The limiter counts attempts, not failures.
type RateLimitConfig struct {
	Enabled            bool
	MaxGenerations     int
	GenerationWindow   time.Duration
	MaxVerifications   int
	VerificationWindow time.Duration
}

// TokenConfig controls the session token minted at journey completion.
// With no signing material configured, completion succeeds without a token
// and the embedding application is expected to establish the session.
type TokenConfig struct {
	SigningMethod token.SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	SessionTTL    time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.Journey.IdleTimeout <= 0 {
		c.Journey.IdleTimeout = 20 * time.Minute
	}
	if c.Journey.Retention <= 0 {
		c.Journey.Retention = 24 * time.Hour
	}
	if c.Journey.KeyPrefix == "" {
		c.Journey.KeyPrefix = "aj"
	}
	if c.Passcode.Digits == 0 {
		c.Passcode.Digits = 5
	}
	if c.Passcode.TTL <= 0 {
		c.Passcode.TTL = 2 * time.Minute
	}
	if c.Passcode.ResendGrace <= 0 {
		c.Passcode.ResendGrace = 2 * time.Hour
	}
	if c.Passcode.KeyPrefix == "" {
		c.Passcode.KeyPrefix = "pc"
	}
	if c.RateLimit.MaxGenerations <= 0 {
		c.RateLimit.MaxGenerations = 5
	}
	if c.RateLimit.GenerationWindow <= 0 {
		c.RateLimit.GenerationWindow = time.Hour
	}
	if c.RateLimit.MaxVerifications <= 0 {
		c.RateLimit.MaxVerifications = 10
	}
	if c.RateLimit.VerificationWindow <= 0 {
		c.RateLimit.VerificationWindow = time.Hour
	}
	if c.Token.SessionTTL <= 0 {
		c.Token.SessionTTL = time.Hour
	}
}

func (c *Config) validate() error {
	if c.Journey.Retention < c.Journey.IdleTimeout {
		return errors.New("journey retention must not be shorter than the idle timeout")
	}
	if c.Passcode.Digits < 4 || c.Passcode.Digits > 8 {
		return errors.New("passcode digits must be between 4 and 8")
	}
	if c.Passcode.ResendGrace < c.Passcode.TTL {
		return errors.New("passcode resend grace must not be shorter than the code TTL")
	}
	return nil
}

// tokenConfigured reports whether completion should mint a session token.
func (c *Config) tokenConfigured() bool {
	return c.Token.SigningMethod != ""
}
