package journey

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrEmailRequired is returned by transitions that assume an email
	// address has already been collected.
	ErrEmailRequired = errors.New("journey: email address not set")
	// ErrEmailUnverified is returned by transitions that assume the email
	// milestone has been passed.
	ErrEmailUnverified = errors.New("journey: email address not verified")
	// ErrEmailLocked is returned when a transition would change a contact
	// address that has already been verified. A verified address can only
	// be discarded by Reset.
	ErrEmailLocked = errors.New("journey: verified email address cannot change")
	// ErrMobileLocked mirrors ErrEmailLocked for the mobile number.
	ErrMobileLocked = errors.New("journey: verified mobile number cannot change")
	// ErrMobileRequired is returned when a mobile transition runs before a
	// number has been collected.
	ErrMobileRequired = errors.New("journey: mobile number not set")
	// ErrTRNStatusInvariant is returned when a lookup completion would
	// break the rule that a TRN is recorded iff the status is Found.
	ErrTRNStatusInvariant = errors.New("journey: trn must be set exactly when lookup status is found")
	// ErrConflictSequence is returned when a conflict-branch transition
	// runs out of order.
	ErrConflictSequence = errors.New("journey: conflict transition out of order")
	// ErrConflictActive is returned when a plain lookup completion would
	// clobber an in-progress conflict branch.
	ErrConflictActive = errors.New("journey: trn conflict resolution in progress")
	// ErrEmailChoiceInvalid is returned when the chosen account email is
	// neither of the two known addresses.
	ErrEmailChoiceInvalid = errors.New("journey: chosen email is not one of the offered addresses")
	// ErrUserIDConflict is returned when completion would rebind an
	// already-resolved journey to a different account.
	ErrUserIDConflict = errors.New("journey: journey already resolved to a different account")
)

// TRNLookupStatus is the outcome of teacher record matching. The status is
// unset until the first lookup completes; StatusNone is itself a legitimate
// terminal outcome (the user has no teacher record).
type TRNLookupStatus uint8

const (
	// StatusNone means matching completed and found no record, with no
	// signal that one should exist.
	StatusNone TRNLookupStatus = iota
	// StatusPending means no record matched but the user declared a TRN or
	// QTS award, so support staff must reconcile the mismatch manually.
	StatusPending
	// StatusFound means matching resolved to exactly one record.
	StatusFound
	// StatusFailed is reserved for terminal lookup failures recorded by
	// support tooling. The coordinator itself never sets it: a failed or
	// cancelled lookup degrades to StatusPending or StatusNone instead.
	StatusFailed
)

func (t TRNLookupStatus) String() string {
	switch t {
	case StatusNone:
		return "none"
	case StatusPending:
		return "pending"
	case StatusFound:
		return "found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConflictState tracks progress through the "TRN already in use" branch,
// independent of the main milestone sequence.
type ConflictState uint8

const (
	// ConflictNone means no conflict has been detected.
	ConflictNone ConflictState = iota
	// ConflictExistingTRNFound means the matched TRN is already linked to a
	// different account and ownership has not yet been proven.
	ConflictExistingTRNFound
	// ConflictOwnerEmailVerified means the user has proven control of the
	// owning account's mailbox.
	ConflictOwnerEmailVerified
	// ConflictComplete means the user has chosen the continuing account
	// email and the journey is bound to the existing account.
	ConflictComplete
)

func (c ConflictState) String() string {
	switch c {
	case ConflictNone:
		return "none"
	case ConflictExistingTRNFound:
		return "existing_trn_found"
	case ConflictOwnerEmailVerified:
		return "owner_email_verified"
	case ConflictComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Requirements is the immutable policy describing which steps are mandatory
// for a journey instance.
type Requirements uint8

const (
	// RequireTRN demands that the journey resolve to a known TRN holder
	// before it can complete.
	RequireTRN Requirements = 1 << iota
	// RequireMobileVerified demands a proven mobile number before the
	// journey can complete.
	RequireMobileVerified
)

// Has reports whether all the given requirement bits are set.
func (r Requirements) Has(req Requirements) bool {
	return r&req == req
}

// OAuthContext carries the relying client's hand-back parameters through the
// journey unchanged. It survives Reset.
type OAuthContext struct {
	ClientID      string
	RedirectURI   string
	PostSignInURL string
}

// LinkedAccount is the subset of an existing local account copied into
// journey state when a returning user verifies their email.
type LinkedAccount struct {
	UserID      string
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	TRN         string
}

// State is the serializable record of everything a journey has discovered
// or the user has declared so far. All fields are unexported; the only
// legal mutations are the transition methods below.
type State struct {
	journeyID    string
	startedAt    time.Time
	lastActiveAt time.Time
	requirements Requirements
	oauth        OAuthContext

	emailAddress   string
	emailVerified  bool
	mobileNumber   string
	mobileVerified bool

	officialFirstName  string
	officialLastName   string
	hasPreviousName    *bool
	previousFirstName  string
	previousLastName   string
	preferredFirstName string
	preferredLastName  string
	dateOfBirth        time.Time
	hasNINumber        *bool
	niNumber           string
	statedTRN          string
	awardedQTS         *bool
	ittProviderName    string

	trn             string
	trnLookupStatus *TRNLookupStatus
	trnLookupState  ConflictState
	trnOwnerEmail   string

	userID                  string
	firstTimeUser           bool
	firstTimeSignInForEmail *bool

	completedTRNPage          bool
	completedConfirmationPage bool

	completedAt time.Time
}

// New creates a fresh, unstarted journey.
func New(journeyID string, requirements Requirements, oauth OAuthContext, now time.Time) *State {
	return &State{
		journeyID:    journeyID,
		startedAt:    now,
		lastActiveAt: now,
		requirements: requirements,
		oauth:        oauth,
	}
}

// Touch records request activity for idle-timeout purposes.
func (s *State) Touch(now time.Time) {
	s.lastActiveAt = now
}

// Reset restores the journey to its unstarted shape, retaining only the
// journey identifier and the OAuth hand-back context.
func (s *State) Reset(now time.Time) {
	*s = State{
		journeyID:    s.journeyID,
		startedAt:    now,
		lastActiveAt: now,
		requirements: s.requirements,
		oauth:        s.oauth,
	}
}

// SetEmail records the address the user wants to sign in with and clears
// any earlier verification. A verified address cannot be swapped out; the
// journey must be Reset instead, so that LastMilestone stays monotonic.
func (s *State) SetEmail(address string) error {
	address = NormalizeEmail(address)
	if address == "" {
		return ErrEmailRequired
	}
	if s.emailVerified && address != s.emailAddress {
		return ErrEmailLocked
	}
	s.emailAddress = address
	return nil
}

// ConfirmEmailVerified marks the email milestone passed. When a matching
// local account was found for the address, the journey binds to it and
// copies its known attributes; otherwise the journey is flagged as the
// first sign-in for this email. Re-confirming an already-verified email is
// a no-op.
func (s *State) ConfirmEmailVerified(account *LinkedAccount) error {
	if s.emailAddress == "" {
		return ErrEmailRequired
	}
	if s.emailVerified {
		return nil
	}

	s.emailVerified = true
	if account == nil {
		s.firstTimeSignInForEmail = boolPtr(true)
		return nil
	}

	s.firstTimeSignInForEmail = boolPtr(false)
	s.userID = account.UserID
	if account.FirstName != "" {
		s.officialFirstName = account.FirstName
	}
	if account.LastName != "" {
		s.officialLastName = account.LastName
	}
	if !account.DateOfBirth.IsZero() {
		s.dateOfBirth = account.DateOfBirth
	}
	if account.TRN != "" {
		s.trn = account.TRN
		status := StatusFound
		s.trnLookupStatus = &status
	}
	return nil
}

// SetMobileNumber records the user's mobile number and clears any earlier
// verification, with the same lock rule as SetEmail.
func (s *State) SetMobileNumber(number string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return ErrMobileRequired
	}
	if s.mobileVerified && number != s.mobileNumber {
		return ErrMobileLocked
	}
	s.mobileNumber = number
	return nil
}

// ConfirmMobileVerified marks the mobile number as proven. Idempotent.
func (s *State) ConfirmMobileVerified() error {
	if s.mobileNumber == "" {
		return ErrMobileRequired
	}
	s.mobileVerified = true
	return nil
}

// SetOfficialName records the user's official name and, when present, the
// previous official name a record might still be filed under.
func (s *State) SetOfficialName(first, last string, hasPrevious bool, previousFirst, previousLast string) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	s.officialFirstName = strings.TrimSpace(first)
	s.officialLastName = strings.TrimSpace(last)
	s.hasPreviousName = boolPtr(hasPrevious)
	if hasPrevious {
		s.previousFirstName = strings.TrimSpace(previousFirst)
		s.previousLastName = strings.TrimSpace(previousLast)
	} else {
		s.previousFirstName = ""
		s.previousLastName = ""
	}
	return nil
}

// SetPreferredName records the name the user wants to be addressed by.
func (s *State) SetPreferredName(first, last string) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	s.preferredFirstName = strings.TrimSpace(first)
	s.preferredLastName = strings.TrimSpace(last)
	return nil
}

// SetDateOfBirth records the declared date of birth.
func (s *State) SetDateOfBirth(dob time.Time) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	s.dateOfBirth = dob
	return nil
}

// SetHasNationalInsuranceNumber records whether the user says they hold a
// National Insurance number. Declining clears any previously entered value.
func (s *State) SetHasNationalInsuranceNumber(has bool) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	s.hasNINumber = boolPtr(has)
	if !has {
		s.niNumber = ""
	}
	return nil
}

// SetNationalInsuranceNumber records the declared NI number and implies the
// user holds one.
func (s *State) SetNationalInsuranceNumber(nino string) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	s.niNumber = strings.ToUpper(strings.ReplaceAll(nino, " ", ""))
	s.hasNINumber = boolPtr(true)
	return nil
}

// SetAwardedQTS records whether the user says they have been awarded
// qualified teacher status. Declining clears the ITT provider.
func (s *State) SetAwardedQTS(awarded bool) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	s.awardedQTS = boolPtr(awarded)
	if !awarded {
		s.ittProviderName = ""
	}
	return nil
}

// SetITTProvider records the initial teacher training provider and implies
// a QTS award.
func (s *State) SetITTProvider(name string) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	s.ittProviderName = strings.TrimSpace(name)
	s.awardedQTS = boolPtr(true)
	return nil
}

// SetStatedTRN records the TRN the user believes is theirs. This is the
// self-declared value, distinct from a matched TRN.
func (s *State) SetStatedTRN(trn string) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	s.statedTRN = strings.TrimSpace(trn)
	return nil
}

// CompleteTRNLookup records a matching outcome. It is the only writer of
// the matched TRN and its status, and it enforces the invariant that the
// TRN is recorded exactly when the status is StatusFound.
func (s *State) CompleteTRNLookup(trn string, status TRNLookupStatus) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	if s.trnLookupState != ConflictNone {
		return ErrConflictActive
	}
	if (status == StatusFound) != (trn != "") {
		return ErrTRNStatusInvariant
	}
	s.trn = trn
	s.trnLookupStatus = &status
	return nil
}

// CompleteTRNLookupForExistingOwner records a match whose TRN is already
// linked to a different local account and enters the conflict branch. The
// owner email and the conflict sub-state are always set together.
func (s *State) CompleteTRNLookupForExistingOwner(trn, ownerEmail string) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	ownerEmail = NormalizeEmail(ownerEmail)
	if trn == "" || ownerEmail == "" {
		return ErrConflictSequence
	}
	status := StatusFound
	s.trn = trn
	s.trnLookupStatus = &status
	s.trnOwnerEmail = ownerEmail
	s.trnLookupState = ConflictExistingTRNFound
	return nil
}

// ConfirmOwnerEmailVerified advances the conflict branch once the user has
// proven control of the owning account's mailbox.
func (s *State) ConfirmOwnerEmailVerified() error {
	switch s.trnLookupState {
	case ConflictExistingTRNFound:
		s.trnLookupState = ConflictOwnerEmailVerified
		return nil
	case ConflictOwnerEmailVerified:
		return nil
	default:
		return ErrConflictSequence
	}
}

// ChooseAccountEmail finalizes the conflict branch: the continuing account
// keeps the chosen address, which must be one of the two emails the user
// has proven. Any other value is a tampering attempt and is rejected.
func (s *State) ChooseAccountEmail(chosen, resolvedUserID string) error {
	if s.trnLookupState != ConflictOwnerEmailVerified {
		return ErrConflictSequence
	}
	chosen = NormalizeEmail(chosen)
	if chosen != s.emailAddress && chosen != s.trnOwnerEmail {
		return ErrEmailChoiceInvalid
	}
	if resolvedUserID == "" {
		return ErrConflictSequence
	}
	s.emailAddress = chosen
	s.userID = resolvedUserID
	s.trnLookupState = ConflictComplete
	return nil
}

// MarkTRNPageCompleted records that the TRN question sequence has been
// passed, so a refresh cannot re-run its side effects.
func (s *State) MarkTRNPageCompleted() {
	s.completedTRNPage = true
}

// MarkConfirmationPageCompleted records that the final confirmation page
// has been shown.
func (s *State) MarkConfirmationPageCompleted() {
	s.completedConfirmationPage = true
}

// MarkComplete resolves the journey to a concrete account. Completing an
// already-complete journey with the same account is a no-op; rebinding to a
// different account is rejected.
func (s *State) MarkComplete(now time.Time, userID string, firstTimeUser bool) error {
	if !s.emailVerified {
		return ErrEmailUnverified
	}
	if userID == "" {
		return ErrUserIDConflict
	}
	if !s.completedAt.IsZero() {
		if s.userID != userID {
			return ErrUserIDConflict
		}
		return nil
	}
	if s.userID != "" && s.userID != userID {
		return ErrUserIDConflict
	}
	s.userID = userID
	s.firstTimeUser = firstTimeUser
	s.completedAt = now
	return nil
}

// NormalizeEmail canonicalizes an email address for comparison and storage.
func NormalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func boolPtr(b bool) *bool {
	return &b
}

// Accessors. State is read freely but written only via transitions.

func (s *State) JourneyID() string          { return s.journeyID }
func (s *State) StartedAt() time.Time       { return s.startedAt }
func (s *State) LastActiveAt() time.Time    { return s.lastActiveAt }
func (s *State) Requirements() Requirements { return s.requirements }
func (s *State) OAuth() OAuthContext        { return s.oauth }

func (s *State) EmailAddress() string { return s.emailAddress }
func (s *State) EmailVerified() bool  { return s.emailVerified }
func (s *State) MobileNumber() string { return s.mobileNumber }
func (s *State) MobileVerified() bool { return s.mobileVerified }

func (s *State) OfficialFirstName() string  { return s.officialFirstName }
func (s *State) OfficialLastName() string   { return s.officialLastName }
func (s *State) PreviousFirstName() string  { return s.previousFirstName }
func (s *State) PreviousLastName() string   { return s.previousLastName }
func (s *State) PreferredFirstName() string { return s.preferredFirstName }
func (s *State) PreferredLastName() string  { return s.preferredLastName }
func (s *State) DateOfBirth() time.Time     { return s.dateOfBirth }
func (s *State) NationalInsuranceNumber() string { return s.niNumber }
func (s *State) StatedTRN() string               { return s.statedTRN }
func (s *State) ITTProviderName() string         { return s.ittProviderName }

// HasPreviousName reports the declared value and whether it has been
// declared at all.
func (s *State) HasPreviousName() (value, declared bool) {
	if s.hasPreviousName == nil {
		return false, false
	}
	return *s.hasPreviousName, true
}

// HasNationalInsuranceNumber reports the declared value and whether it has
// been declared at all.
func (s *State) HasNationalInsuranceNumber() (value, declared bool) {
	if s.hasNINumber == nil {
		return false, false
	}
	return *s.hasNINumber, true
}

// AwardedQTS reports the declared value and whether it has been declared.
func (s *State) AwardedQTS() (value, declared bool) {
	if s.awardedQTS == nil {
		return false, false
	}
	return *s.awardedQTS, true
}

func (s *State) TRN() string { return s.trn }

// TRNLookupStatus reports the matching outcome and whether a lookup has
// completed at all.
func (s *State) TRNLookupStatus() (TRNLookupStatus, bool) {
	if s.trnLookupStatus == nil {
		return StatusNone, false
	}
	return *s.trnLookupStatus, true
}

func (s *State) ConflictState() ConflictState { return s.trnLookupState }
func (s *State) TRNOwnerEmail() string        { return s.trnOwnerEmail }

func (s *State) UserID() string      { return s.userID }
func (s *State) FirstTimeUser() bool { return s.firstTimeUser }

// FirstTimeSignInForEmail reports whether this journey is the first sign-in
// for the verified email, and whether that has been determined yet.
func (s *State) FirstTimeSignInForEmail() (value, determined bool) {
	if s.firstTimeSignInForEmail == nil {
		return false, false
	}
	return *s.firstTimeSignInForEmail, true
}

func (s *State) TRNPageCompleted() bool          { return s.completedTRNPage }
func (s *State) ConfirmationPageCompleted() bool { return s.completedConfirmationPage }
func (s *State) CompletedAt() time.Time          { return s.completedAt }
func (s *State) Completed() bool                 { return !s.completedAt.IsZero() }
