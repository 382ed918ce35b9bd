package journey

import (
	"encoding/json"
	"errors"
	"time"
)

const stateRecordVersion = 1

// stateRecord is the persisted shape of State. Fields are pointers or
// omitempty where the in-memory field distinguishes "unset" from zero.
type stateRecord struct {
	Version      int          `json:"v"`
	JourneyID    string       `json:"journey_id"`
	StartedAt    time.Time    `json:"started_at"`
	LastActiveAt time.Time    `json:"last_active_at"`
	Requirements Requirements `json:"requirements,omitempty"`

	OAuthClientID      string `json:"oauth_client_id,omitempty"`
	OAuthRedirectURI   string `json:"oauth_redirect_uri,omitempty"`
	OAuthPostSignInURL string `json:"oauth_post_sign_in_url,omitempty"`

	EmailAddress   string `json:"email,omitempty"`
	EmailVerified  bool   `json:"email_verified,omitempty"`
	MobileNumber   string `json:"mobile,omitempty"`
	MobileVerified bool   `json:"mobile_verified,omitempty"`

	OfficialFirstName  string     `json:"official_first_name,omitempty"`
	OfficialLastName   string     `json:"official_last_name,omitempty"`
	HasPreviousName    *bool      `json:"has_previous_name,omitempty"`
	PreviousFirstName  string     `json:"previous_first_name,omitempty"`
	PreviousLastName   string     `json:"previous_last_name,omitempty"`
	PreferredFirstName string     `json:"preferred_first_name,omitempty"`
	PreferredLastName  string     `json:"preferred_last_name,omitempty"`
	DateOfBirth        *time.Time `json:"date_of_birth,omitempty"`
	HasNINumber        *bool      `json:"has_ni_number,omitempty"`
	NINumber           string     `json:"ni_number,omitempty"`
	StatedTRN          string     `json:"stated_trn,omitempty"`
	AwardedQTS         *bool      `json:"awarded_qts,omitempty"`
	ITTProviderName    string     `json:"itt_provider_name,omitempty"`

	TRN             string           `json:"trn,omitempty"`
	TRNLookupStatus *TRNLookupStatus `json:"trn_lookup_status,omitempty"`
	TRNLookupState  ConflictState    `json:"trn_lookup_state,omitempty"`
	TRNOwnerEmail   string           `json:"trn_owner_email,omitempty"`

	UserID                  string `json:"user_id,omitempty"`
	FirstTimeUser           bool   `json:"first_time_user,omitempty"`
	FirstTimeSignInForEmail *bool  `json:"first_time_sign_in_for_email,omitempty"`

	CompletedTRNPage          bool `json:"completed_trn_page,omitempty"`
	CompletedConfirmationPage bool `json:"completed_confirmation_page,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// MarshalJSON serializes the state for durable storage.
func (s *State) MarshalJSON() ([]byte, error) {
	rec := stateRecord{
		Version:      stateRecordVersion,
		JourneyID:    s.journeyID,
		StartedAt:    s.startedAt,
		LastActiveAt: s.lastActiveAt,
		Requirements: s.requirements,

		OAuthClientID:      s.oauth.ClientID,
		OAuthRedirectURI:   s.oauth.RedirectURI,
		OAuthPostSignInURL: s.oauth.PostSignInURL,

		EmailAddress:   s.emailAddress,
		EmailVerified:  s.emailVerified,
		MobileNumber:   s.mobileNumber,
		MobileVerified: s.mobileVerified,

		OfficialFirstName:  s.officialFirstName,
		OfficialLastName:   s.officialLastName,
		HasPreviousName:    s.hasPreviousName,
		PreviousFirstName:  s.previousFirstName,
		PreviousLastName:   s.previousLastName,
		PreferredFirstName: s.preferredFirstName,
		PreferredLastName:  s.preferredLastName,
		HasNINumber:        s.hasNINumber,
		NINumber:           s.niNumber,
		StatedTRN:          s.statedTRN,
		AwardedQTS:         s.awardedQTS,
		ITTProviderName:    s.ittProviderName,

		TRN:             s.trn,
		TRNLookupStatus: s.trnLookupStatus,
		TRNLookupState:  s.trnLookupState,
		TRNOwnerEmail:   s.trnOwnerEmail,

		UserID:                  s.userID,
		FirstTimeUser:           s.firstTimeUser,
		FirstTimeSignInForEmail: s.firstTimeSignInForEmail,

		CompletedTRNPage:          s.completedTRNPage,
		CompletedConfirmationPage: s.completedConfirmationPage,
	}
	if !s.dateOfBirth.IsZero() {
		dob := s.dateOfBirth
		rec.DateOfBirth = &dob
	}
	if !s.completedAt.IsZero() {
		done := s.completedAt
		rec.CompletedAt = &done
	}
	return json.Marshal(rec)
}

// UnmarshalJSON restores a persisted state.
func (s *State) UnmarshalJSON(data []byte) error {
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if rec.Version != stateRecordVersion {
		return errors.New("journey: unsupported state record version")
	}
	if rec.JourneyID == "" {
		return errors.New("journey: state record missing journey id")
	}

	*s = State{
		journeyID:    rec.JourneyID,
		startedAt:    rec.StartedAt,
		lastActiveAt: rec.LastActiveAt,
		requirements: rec.Requirements,
		oauth: OAuthContext{
			ClientID:      rec.OAuthClientID,
			RedirectURI:   rec.OAuthRedirectURI,
			PostSignInURL: rec.OAuthPostSignInURL,
		},

		emailAddress:   rec.EmailAddress,
		emailVerified:  rec.EmailVerified,
		mobileNumber:   rec.MobileNumber,
		mobileVerified: rec.MobileVerified,

		officialFirstName:  rec.OfficialFirstName,
		officialLastName:   rec.OfficialLastName,
		hasPreviousName:    rec.HasPreviousName,
		previousFirstName:  rec.PreviousFirstName,
		previousLastName:   rec.PreviousLastName,
		preferredFirstName: rec.PreferredFirstName,
		preferredLastName:  rec.PreferredLastName,
		hasNINumber:        rec.HasNINumber,
		niNumber:           rec.NINumber,
		statedTRN:          rec.StatedTRN,
		awardedQTS:         rec.AwardedQTS,
		ittProviderName:    rec.ITTProviderName,

		trn:             rec.TRN,
		trnLookupStatus: rec.TRNLookupStatus,
		trnLookupState:  rec.TRNLookupState,
		trnOwnerEmail:   rec.TRNOwnerEmail,

		userID:                  rec.UserID,
		firstTimeUser:           rec.FirstTimeUser,
		firstTimeSignInForEmail: rec.FirstTimeSignInForEmail,

		completedTRNPage:          rec.CompletedTRNPage,
		completedConfirmationPage: rec.CompletedConfirmationPage,
	}
	if rec.DateOfBirth != nil {
		s.dateOfBirth = *rec.DateOfBirth
	}
	if rec.CompletedAt != nil {
		s.completedAt = *rec.CompletedAt
	}
	return nil
}
