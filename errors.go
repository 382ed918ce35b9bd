package idjourney

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine is used before all of
	// its required collaborators have been wired.
	ErrEngineNotReady = errors.New("journey engine not initialized")
	// ErrJourneyNotFound is returned when a journey identifier does not
	// resolve to any stored state: malformed, missing, or forged.
	ErrJourneyNotFound = errors.New("journey not found")
	// ErrJourneyExpired is returned when a journey has been idle past the
	// configured timeout. The journey must be restarted; expiry is
	// reported, never silently swallowed.
	ErrJourneyExpired = errors.New("journey expired")
	// ErrDestinationInvalid is returned when a passcode destination is
	// empty or unrecognizable as an email address or phone number.
	ErrDestinationInvalid = errors.New("invalid passcode destination")
	// ErrPasscodeFormat is returned when a submitted passcode fails format
	// validation (wrong length, non-numeric). Checked before any store or
	// rate-limit work; it never consumes attempt budget.
	ErrPasscodeFormat = errors.New("invalid passcode format")
	// ErrPasscodeRateLimited is returned when the caller has exceeded the
	// generation or verification budget for the window.
	ErrPasscodeRateLimited = errors.New("passcode rate limited")
	// ErrNotificationFailed is returned when the delivery collaborator
	// could not accept a passcode send.
	ErrNotificationFailed = errors.New("passcode notification failed")
	// ErrStoreUnavailable is returned when the durable store cannot be
	// reached.
	ErrStoreUnavailable = errors.New("journey store unavailable")
	// ErrLookupUnavailable wraps unexpected teacher record source failures.
	// Cancellation is not wrapped: a cancelled lookup degrades to "no
	// match" instead.
	ErrLookupUnavailable = errors.New("teacher record lookup unavailable")
	// ErrNoConflict is returned when a conflict-resolution operation runs
	// on a journey whose lookup never entered the conflict branch.
	ErrNoConflict = errors.New("journey has no trn conflict to resolve")
	// ErrEmailChoiceRejected is returned when the chosen continuing email
	// is neither of the two offered addresses. It cannot arise from the
	// rendered UI, so it is treated as a forged request.
	ErrEmailChoiceRejected = errors.New("email choice rejected")
	// ErrRequirementsUnmet is returned when completion is attempted before
	// the journey's mandatory steps are satisfied.
	ErrRequirementsUnmet = errors.New("journey requirements not met")
	// ErrAccountUnavailable is returned when the account store fails.
	ErrAccountUnavailable = errors.New("account store unavailable")
)
