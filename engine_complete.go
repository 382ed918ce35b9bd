package idjourney

import (
	"context"

	"github.com/edugate/idjourney/journey"
)

// CompleteJourney resolves the journey to a concrete account and prepares
// the hand-back to the relying client. First-time users get an account
// created from the attributes gathered during the journey; returning users
// keep the account the journey already bound to.
//
// Completion is idempotent: a second call on an already-complete journey
// (a double-submitted form) returns the same outcome without re-running
// account creation.
func (e *Engine) CompleteJourney(ctx context.Context, state *journey.State) (*CompleteJourneyResult, error) {
	if e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	if state.Completed() {
		return e.completionResult(state)
	}

	if !state.EmailVerified() {
		return nil, ErrRequirementsUnmet
	}
	if state.Requirements().Has(journey.RequireTRN) {
		if status, done := state.TRNLookupStatus(); !done || status != journey.StatusFound {
			return nil, ErrRequirementsUnmet
		}
	}
	if state.Requirements().Has(journey.RequireMobileVerified) && !state.MobileVerified() {
		return nil, ErrRequirementsUnmet
	}

	userID := state.UserID()
	firstTime := false
	if userID == "" {
		account, err := e.accounts.CreateAccount(ctx, CreateAccountInput{
			EmailAddress:       state.EmailAddress(),
			FirstName:          state.OfficialFirstName(),
			LastName:           state.OfficialLastName(),
			PreferredFirstName: state.PreferredFirstName(),
			PreferredLastName:  state.PreferredLastName(),
			DateOfBirth:        state.DateOfBirth(),
			TRN:                state.TRN(),
		})
		if err != nil {
			return nil, ErrAccountUnavailable
		}
		userID = account.UserID
		firstTime = true
		e.metricInc(MetricAccountCreated)
	}

	if err := state.MarkComplete(e.clock.Now(), userID, firstTime); err != nil {
		return nil, err
	}
	if err := e.SaveJourney(ctx, state); err != nil {
		return nil, err
	}

	e.metricInc(MetricJourneyCompleted)
	e.emitAudit(ctx, auditEventJourneyComplete, true, state.JourneyID(), userID, nil, func() map[string]string {
		return map[string]string{
			"first_time_user": boolString(firstTime),
		}
	})

	return e.completionResult(state)
}

func (e *Engine) completionResult(state *journey.State) (*CompleteJourneyResult, error) {
	result := &CompleteJourneyResult{
		UserID:        state.UserID(),
		FirstTimeUser: state.FirstTimeUser(),
		RedirectURL:   state.OAuth().PostSignInURL,
	}

	if e.tokens != nil {
		tok, err := e.tokens.CreateSession(
			state.UserID(),
			state.EmailAddress(),
			state.TRN(),
			state.JourneyID(),
			state.FirstTimeUser(),
		)
		if err != nil {
			return nil, err
		}
		result.SessionToken = tok
	}

	return result, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
