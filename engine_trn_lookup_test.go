package idjourney

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edugate/idjourney/journey"
)

func lookupReadyJourney(t *testing.T, env *testEnv, email string) *journey.State {
	t.Helper()

	state := verifiedJourney(t, env, email)
	if err := state.SetOfficialName("Jane", "Doe", false, "", ""); err != nil {
		t.Fatalf("SetOfficialName failed: %v", err)
	}
	if err := state.SetDateOfBirth(time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("SetDateOfBirth failed: %v", err)
	}
	return state
}

func TestLookupTRNSingleMatch(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.records.results = []TeacherRecord{{TRN: "1234567", FirstName: "Jane", LastName: "Doe"}}

	state := lookupReadyJourney(t, env, "jane@example.com")
	if err := env.engine.LookupTRN(context.Background(), state); err != nil {
		t.Fatalf("LookupTRN failed: %v", err)
	}

	if state.TRN() != "1234567" {
		t.Fatalf("expected matched TRN, got %q", state.TRN())
	}
	if status, done := state.TRNLookupStatus(); !done || status != journey.StatusFound {
		t.Fatalf("expected StatusFound, got %s done=%v", status, done)
	}
	if state.LastMilestone() != journey.MilestoneTRNLookupCompleted {
		t.Fatalf("expected MilestoneTRNLookupCompleted, got %s", state.LastMilestone())
	}
	if got := env.engine.Metrics().Get(MetricTRNLookupMatched); got != 1 {
		t.Fatalf("expected 1 matched metric, got %d", got)
	}
}

func TestLookupTRNNoResultsNoSignals(t *testing.T) {
	env := newTestEnv(t, testConfig())

	state := lookupReadyJourney(t, env, "jane@example.com")
	if err := env.engine.LookupTRN(context.Background(), state); err != nil {
		t.Fatalf("LookupTRN failed: %v", err)
	}

	if state.TRN() != "" {
		t.Fatalf("expected no TRN recorded, got %q", state.TRN())
	}
	if status, done := state.TRNLookupStatus(); !done || status != journey.StatusNone {
		t.Fatalf("expected StatusNone, got %s done=%v", status, done)
	}
	if state.LastMilestone() != journey.MilestoneTRNLookupCompleted {
		t.Fatalf("a no-record outcome still completes the milestone, got %s", state.LastMilestone())
	}
}

func TestLookupTRNNoResultsWithStatedTRN(t *testing.T) {
	env := newTestEnv(t, testConfig())

	state := lookupReadyJourney(t, env, "jane@example.com")
	if err := state.SetStatedTRN("7654321"); err != nil {
		t.Fatalf("SetStatedTRN failed: %v", err)
	}
	if err := env.engine.LookupTRN(context.Background(), state); err != nil {
		t.Fatalf("LookupTRN failed: %v", err)
	}

	if status, done := state.TRNLookupStatus(); !done || status != journey.StatusPending {
		t.Fatalf("a declared TRN with no record must be pending, got %s done=%v", status, done)
	}
	if state.TRN() != "" {
		t.Fatalf("a pending outcome must not record a TRN, got %q", state.TRN())
	}
}

func TestLookupTRNNoResultsWithDeclaredQTS(t *testing.T) {
	env := newTestEnv(t, testConfig())

	state := lookupReadyJourney(t, env, "jane@example.com")
	if err := state.SetAwardedQTS(true); err != nil {
		t.Fatalf("SetAwardedQTS failed: %v", err)
	}
	if err := env.engine.LookupTRN(context.Background(), state); err != nil {
		t.Fatalf("LookupTRN failed: %v", err)
	}

	if status, done := state.TRNLookupStatus(); !done || status != journey.StatusPending {
		t.Fatalf("a declared QTS award with no record must be pending, got %s done=%v", status, done)
	}
}

func TestLookupTRNAmbiguousNeverAutoMatches(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.records.results = []TeacherRecord{
		{TRN: "1111111", FirstName: "Jane", LastName: "Doe"},
		{TRN: "2222222", FirstName: "Jane", LastName: "Doe"},
	}

	state := lookupReadyJourney(t, env, "jane@example.com")
	if err := env.engine.LookupTRN(context.Background(), state); err != nil {
		t.Fatalf("LookupTRN failed: %v", err)
	}

	if state.TRN() != "" {
		t.Fatalf("an ambiguous result set must not auto-match, got %q", state.TRN())
	}
	if status, done := state.TRNLookupStatus(); !done || status != journey.StatusNone {
		t.Fatalf("expected StatusNone, got %s done=%v", status, done)
	}
	if got := env.engine.Metrics().Get(MetricTRNLookupAmbiguous); got != 1 {
		t.Fatalf("expected 1 ambiguous metric, got %d", got)
	}
}

func TestLookupTRNCancelledDegradesToNoMatch(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.records.findErr = context.Canceled

	state := lookupReadyJourney(t, env, "jane@example.com")
	if err := state.SetStatedTRN("7654321"); err != nil {
		t.Fatalf("SetStatedTRN failed: %v", err)
	}

	if err := env.engine.LookupTRN(context.Background(), state); err != nil {
		t.Fatalf("a cancelled lookup must not fail the journey: %v", err)
	}
	if status, done := state.TRNLookupStatus(); !done || status != journey.StatusPending {
		t.Fatalf("expected StatusPending after cancelled lookup, got %s done=%v", status, done)
	}
}

func TestLookupTRNSourceFailurePropagates(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.records.findErr = errors.New("upstream 500")

	state := lookupReadyJourney(t, env, "jane@example.com")
	err := env.engine.LookupTRN(context.Background(), state)
	if !errors.Is(err, ErrLookupUnavailable) {
		t.Fatalf("expected ErrLookupUnavailable, got %v", err)
	}
	if _, done := state.TRNLookupStatus(); done {
		t.Fatal("a failed lookup must leave the outcome undetermined")
	}
}

func TestLookupTRNSkipsWithoutSearchableAttributes(t *testing.T) {
	env := newTestEnv(t, testConfig())

	state := verifiedJourney(t, env, "jane@example.com")
	if err := env.engine.LookupTRN(context.Background(), state); err != nil {
		t.Fatalf("LookupTRN failed: %v", err)
	}

	if env.records.queryCount() != 0 {
		t.Fatal("no query should run without a name and date of birth or stated TRN")
	}
	if _, done := state.TRNLookupStatus(); done {
		t.Fatal("skipped lookups must leave the outcome undetermined")
	}
}

func TestLookupTRNRequiresVerifiedEmail(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	state, err := env.engine.StartJourney(ctx, StartJourneyInput{})
	if err != nil {
		t.Fatalf("StartJourney failed: %v", err)
	}

	if err := env.engine.LookupTRN(ctx, state); !errors.Is(err, journey.ErrEmailUnverified) {
		t.Fatalf("expected ErrEmailUnverified, got %v", err)
	}
}

func TestLookupTRNEntersConflictForOwnedTRN(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.records.results = []TeacherRecord{{TRN: "1234567", FirstName: "Jane", LastName: "Doe"}}
	env.accounts.put(AccountRecord{
		UserID:       "owner-1",
		EmailAddress: "owner@example.com",
		TRN:          "1234567",
	})

	state := lookupReadyJourney(t, env, "jane@example.com")
	if err := env.engine.LookupTRN(context.Background(), state); err != nil {
		t.Fatalf("LookupTRN failed: %v", err)
	}

	if state.ConflictState() != journey.ConflictExistingTRNFound {
		t.Fatalf("expected ConflictExistingTRNFound, got %s", state.ConflictState())
	}
	if state.TRNOwnerEmail() != "owner@example.com" {
		t.Fatalf("expected owner email recorded, got %q", state.TRNOwnerEmail())
	}
	if state.UserID() != "" {
		t.Fatal("the journey must not bind to the owning account before ownership is proven")
	}
	if !strings.HasPrefix(state.NextHopURL(), journey.PathTRNInUse+"?") {
		t.Fatalf("expected next hop at the in-use page, got %s", state.NextHopURL())
	}
	if got := env.engine.Metrics().Get(MetricTRNConflictEntered); got != 1 {
		t.Fatalf("expected 1 conflict-entered metric, got %d", got)
	}
}

func TestLookupTRNStatusFor(t *testing.T) {
	env := newTestEnv(t, testConfig())
	state := verifiedJourney(t, env, "jane@example.com")

	if got := TRNLookupStatusFor(&TeacherRecord{TRN: "1234567"}, state); got != journey.StatusFound {
		t.Fatalf("match should be found, got %s", got)
	}
	if got := TRNLookupStatusFor(nil, state); got != journey.StatusNone {
		t.Fatalf("no signals should be none, got %s", got)
	}

	if err := state.SetAwardedQTS(false); err != nil {
		t.Fatalf("SetAwardedQTS failed: %v", err)
	}
	if got := TRNLookupStatusFor(nil, state); got != journey.StatusNone {
		t.Fatalf("a declined QTS question is not a signal, got %s", got)
	}

	if err := state.SetStatedTRN("7654321"); err != nil {
		t.Fatalf("SetStatedTRN failed: %v", err)
	}
	if got := TRNLookupStatusFor(nil, state); got != journey.StatusPending {
		t.Fatalf("a stated TRN with no match should be pending, got %s", got)
	}
}

func TestNormalizeTRN(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1234567", "1234567"},
		{"RP99/12345", "9912345"},
		{" 12345 ", "0012345"},
		{"12-34-56", "0123456"},
		{"", ""},
		{"12345678", ""},
		{"no digits", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTRN(tc.in); got != tc.want {
			t.Fatalf("NormalizeTRN(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeNINO(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"qq 12 34 56 c", "QQ123456C"},
		{" QQ123456C ", "QQ123456C"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeNINO(tc.in); got != tc.want {
			t.Fatalf("NormalizeNINO(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
