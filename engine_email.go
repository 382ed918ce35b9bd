package idjourney

import (
	"context"

	"github.com/edugate/idjourney/journey"
)

// BeginEmailVerification records the address the user wants to sign in
// with and sends it a passcode. Changing a verified address is rejected by
// the state transition; the journey must be reset instead.
func (e *Engine) BeginEmailVerification(ctx context.Context, state *journey.State, email string) error {
	if err := state.SetEmail(email); err != nil {
		return err
	}

	if _, err := e.GeneratePasscode(ctx, state.EmailAddress()); err != nil {
		return err
	}

	return e.SaveJourney(ctx, state)
}

// CompleteEmailVerification verifies a submitted passcode against the
// journey's email address. On success the address is marked proven and the
// journey binds to a matching local account when one exists, copying its
// known attributes into state. Re-verifying an already-verified email is a
// no-op at the state level, so a double submission cannot re-run the
// account lookup's side effects.
func (e *Engine) CompleteEmailVerification(ctx context.Context, state *journey.State, submitted string) (VerifyPasscodeResult, error) {
	if state.EmailAddress() == "" {
		return PasscodeIncorrect, journey.ErrEmailRequired
	}

	result, err := e.VerifyPasscode(ctx, state.EmailAddress(), submitted)
	if err != nil || result != PasscodeOK {
		return result, err
	}

	var linked *journey.LinkedAccount
	account, err := e.accounts.FindByEmail(ctx, state.EmailAddress())
	if err != nil {
		return PasscodeOK, ErrAccountUnavailable
	}
	if account != nil {
		linked = &journey.LinkedAccount{
			UserID:      account.UserID,
			FirstName:   account.FirstName,
			LastName:    account.LastName,
			DateOfBirth: account.DateOfBirth,
			TRN:         account.TRN,
		}
	}

	if err := state.ConfirmEmailVerified(linked); err != nil {
		return PasscodeOK, err
	}

	return PasscodeOK, e.SaveJourney(ctx, state)
}

// BeginMobileVerification records the user's mobile number and sends it a
// passcode.
func (e *Engine) BeginMobileVerification(ctx context.Context, state *journey.State, number string) error {
	if err := state.SetMobileNumber(number); err != nil {
		return err
	}

	if _, err := e.GeneratePasscode(ctx, state.MobileNumber()); err != nil {
		return err
	}

	return e.SaveJourney(ctx, state)
}

// CompleteMobileVerification verifies a submitted passcode against the
// journey's mobile number.
func (e *Engine) CompleteMobileVerification(ctx context.Context, state *journey.State, submitted string) (VerifyPasscodeResult, error) {
	if state.MobileNumber() == "" {
		return PasscodeIncorrect, journey.ErrMobileRequired
	}

	result, err := e.VerifyPasscode(ctx, state.MobileNumber(), submitted)
	if err != nil || result != PasscodeOK {
		return result, err
	}

	if err := state.ConfirmMobileVerified(); err != nil {
		return PasscodeOK, err
	}

	return PasscodeOK, e.SaveJourney(ctx, state)
}
