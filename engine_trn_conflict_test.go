package idjourney

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/edugate/idjourney/journey"
)

// conflictedJourney drives a journey into the "TRN already in use" branch:
// the matched TRN belongs to owner-1 / owner@example.com.
func conflictedJourney(t *testing.T, env *testEnv) *journey.State {
	t.Helper()

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
		t.Fatalf("expected conflict branch, got %s", state.ConflictState())
	}
	return state
}

func TestConflictResolutionFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	state := conflictedJourney(t, env)

	if err := env.engine.BeginOwnerEmailChallenge(ctx, state); err != nil {
		t.Fatalf("BeginOwnerEmailChallenge failed: %v", err)
	}
	code := env.notifier.lastCode(t, "owner@example.com")

	result, err := env.engine.ConfirmOwnerEmail(ctx, state, code)
	if err != nil {
		t.Fatalf("ConfirmOwnerEmail failed: %v", err)
	}
	if result != PasscodeOK {
		t.Fatalf("expected PasscodeOK, got %s", result)
	}
	if state.ConflictState() != journey.ConflictOwnerEmailVerified {
		t.Fatalf("expected ConflictOwnerEmailVerified, got %s", state.ConflictState())
	}
	if !strings.HasPrefix(state.NextHopURL(), journey.PathChooseEmail+"?") {
		t.Fatalf("expected next hop at choose-email, got %s", state.NextHopURL())
	}

	if err := env.engine.ChooseAccountEmail(ctx, state, "jane@example.com"); err != nil {
		t.Fatalf("ChooseAccountEmail failed: %v", err)
	}
	if state.ConflictState() != journey.ConflictComplete {
		t.Fatalf("expected ConflictComplete, got %s", state.ConflictState())
	}
	if state.UserID() != "owner-1" {
		t.Fatalf("expected journey bound to owner-1, got %q", state.UserID())
	}
	if state.EmailAddress() != "jane@example.com" {
		t.Fatalf("expected chosen email kept, got %q", state.EmailAddress())
	}

	// The existing account keeps the chosen address; no new account exists.
	owner, err := env.accounts.FindByTRN(ctx, "1234567")
	if err != nil {
		t.Fatalf("FindByTRN failed: %v", err)
	}
	if owner.EmailAddress != "jane@example.com" {
		t.Fatalf("expected owner email updated, got %q", owner.EmailAddress)
	}
	if env.accounts.createdCount() != 0 {
		t.Fatal("conflict resolution must not create an account")
	}
	if got := env.engine.Metrics().Get(MetricTRNConflictResolved); got != 1 {
		t.Fatalf("expected 1 resolved metric, got %d", got)
	}

	// Completing now resolves to the existing account.
	outcome, err := env.engine.CompleteJourney(ctx, state)
	if err != nil {
		t.Fatalf("CompleteJourney failed: %v", err)
	}
	if outcome.UserID != "owner-1" || outcome.FirstTimeUser {
		t.Fatalf("expected returning owner-1, got %+v", outcome)
	}
}

func TestConflictKeepOwnerEmail(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	state := conflictedJourney(t, env)
	if err := env.engine.BeginOwnerEmailChallenge(ctx, state); err != nil {
		t.Fatalf("BeginOwnerEmailChallenge failed: %v", err)
	}
	if _, err := env.engine.ConfirmOwnerEmail(ctx, state, env.notifier.lastCode(t, "owner@example.com")); err != nil {
		t.Fatalf("ConfirmOwnerEmail failed: %v", err)
	}

	if err := env.engine.ChooseAccountEmail(ctx, state, "Owner@Example.com"); err != nil {
		t.Fatalf("ChooseAccountEmail failed: %v", err)
	}
	if state.EmailAddress() != "owner@example.com" {
		t.Fatalf("expected owner email kept, got %q", state.EmailAddress())
	}
}

func TestChooseAccountEmailTamperedChoiceRejected(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	state := conflictedJourney(t, env)
	if err := env.engine.BeginOwnerEmailChallenge(ctx, state); err != nil {
		t.Fatalf("BeginOwnerEmailChallenge failed: %v", err)
	}
	if _, err := env.engine.ConfirmOwnerEmail(ctx, state, env.notifier.lastCode(t, "owner@example.com")); err != nil {
		t.Fatalf("ConfirmOwnerEmail failed: %v", err)
	}

	err := env.engine.ChooseAccountEmail(ctx, state, "attacker@example.com")
	if !errors.Is(err, ErrEmailChoiceRejected) {
		t.Fatalf("expected ErrEmailChoiceRejected, got %v", err)
	}
	if state.ConflictState() != journey.ConflictOwnerEmailVerified {
		t.Fatal("a rejected choice must not advance the conflict")
	}
	if len(env.accounts.emailUpdates) != 0 {
		t.Fatal("a rejected choice must not touch the account store")
	}
	if got := env.engine.Metrics().Get(MetricEmailChoiceRejected); got != 1 {
		t.Fatalf("expected 1 rejected-choice metric, got %d", got)
	}
}

func TestChooseAccountEmailRequiresOwnerVerification(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	state := conflictedJourney(t, env)
	if err := env.engine.ChooseAccountEmail(ctx, state, "jane@example.com"); !errors.Is(err, ErrNoConflict) {
		t.Fatalf("expected ErrNoConflict before ownership is proven, got %v", err)
	}
}

func TestOwnerChallengeRequiresConflict(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	state := verifiedJourney(t, env, "jane@example.com")
	if err := env.engine.BeginOwnerEmailChallenge(ctx, state); !errors.Is(err, ErrNoConflict) {
		t.Fatalf("expected ErrNoConflict, got %v", err)
	}
	if _, err := env.engine.ConfirmOwnerEmail(ctx, state, "12345"); !errors.Is(err, ErrNoConflict) {
		t.Fatalf("expected ErrNoConflict, got %v", err)
	}
}

func TestConfirmOwnerEmailWrongCode(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()

	state := conflictedJourney(t, env)
	if err := env.engine.BeginOwnerEmailChallenge(ctx, state); err != nil {
		t.Fatalf("BeginOwnerEmailChallenge failed: %v", err)
	}

	code := env.notifier.lastCode(t, "owner@example.com")
	wrong := "99999"
	if wrong == code {
		wrong = "99998"
	}

	result, err := env.engine.ConfirmOwnerEmail(ctx, state, wrong)
	if err != nil {
		t.Fatalf("ConfirmOwnerEmail failed: %v", err)
	}
	if result != PasscodeIncorrect {
		t.Fatalf("expected PasscodeIncorrect, got %s", result)
	}
	if state.ConflictState() != journey.ConflictExistingTRNFound {
		t.Fatal("a wrong code must not advance the conflict")
	}
}
