package idjourney

import (
	"context"

	"github.com/edugate/idjourney/journey"
)

// BeginOwnerEmailChallenge sends a passcode to the email of the account
// that already owns the matched TRN. This is a distinct passcode
// destination from the signed-in user's own email, so a failure here can
// never be confused with the user's own email verification.
func (e *Engine) BeginOwnerEmailChallenge(ctx context.Context, state *journey.State) error {
	if state.ConflictState() == journey.ConflictNone || state.TRNOwnerEmail() == "" {
		return ErrNoConflict
	}

	if _, err := e.GeneratePasscode(ctx, state.TRNOwnerEmail()); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventConflictChallenge, true, state.JourneyID(), state.UserID(), nil, nil)
	return nil
}

// ConfirmOwnerEmail verifies the passcode sent to the owning account's
// email and, on success, advances the conflict sub-state.
func (e *Engine) ConfirmOwnerEmail(ctx context.Context, state *journey.State, submitted string) (VerifyPasscodeResult, error) {
	if state.ConflictState() == journey.ConflictNone || state.TRNOwnerEmail() == "" {
		return PasscodeIncorrect, ErrNoConflict
	}

	result, err := e.VerifyPasscode(ctx, state.TRNOwnerEmail(), submitted)
	if err != nil || result != PasscodeOK {
		return result, err
	}

	if err := state.ConfirmOwnerEmailVerified(); err != nil {
		return PasscodeOK, err
	}

	return PasscodeOK, e.SaveJourney(ctx, state)
}

// ChooseAccountEmail finalizes the conflict: the continuing account keeps
// the chosen address, which must be one of the two emails the user has
// proven control of. Any other value cannot come from the rendered UI and
// is rejected as a forged request. The chosen email is written onto the
// existing account — no new account is created — and the journey resolves
// to that account.
func (e *Engine) ChooseAccountEmail(ctx context.Context, state *journey.State, chosen string) error {
	if state.ConflictState() != journey.ConflictOwnerEmailVerified {
		return ErrNoConflict
	}

	chosen = journey.NormalizeEmail(chosen)
	if chosen != state.EmailAddress() && chosen != state.TRNOwnerEmail() {
		e.metricInc(MetricEmailChoiceRejected)
		e.emitAudit(ctx, auditEventConflictChoice, false, state.JourneyID(), state.UserID(), ErrEmailChoiceRejected, func() map[string]string {
			return map[string]string{
				"reason": "tampered_choice",
			}
		})
		return ErrEmailChoiceRejected
	}

	owner, err := e.accounts.FindByTRN(ctx, state.TRN())
	if err != nil {
		return ErrAccountUnavailable
	}
	if owner == nil {
		return ErrNoConflict
	}

	if err := e.accounts.UpdateAccountEmail(ctx, owner.UserID, chosen); err != nil {
		return ErrAccountUnavailable
	}

	if err := state.ChooseAccountEmail(chosen, owner.UserID); err != nil {
		return err
	}

	e.metricInc(MetricTRNConflictResolved)
	e.emitAudit(ctx, auditEventConflictChoice, true, state.JourneyID(), owner.UserID, nil, func() map[string]string {
		return map[string]string{
			"chosen": chosen,
		}
	})
	return e.SaveJourney(ctx, state)
}
