package journey

import "net/url"

// Milestone is a coarse-grained, ordered checkpoint in a journey. Later
// milestones require all earlier ones; the value is derived from state
// fields, so it can never desynchronize from the data it describes.
type Milestone uint8

const (
	// MilestoneNone is the starting point of every journey.
	MilestoneNone Milestone = iota
	// MilestoneEmailVerified is reached once the user has proven control
	// of their email address with a passcode.
	MilestoneEmailVerified
	// MilestoneTRNLookupCompleted is reached once teacher record matching
	// has produced an outcome, including "no record".
	MilestoneTRNLookupCompleted
	// MilestoneComplete is reached once the journey has resolved to a
	// concrete account.
	MilestoneComplete
)

func (m Milestone) String() string {
	switch m {
	case MilestoneNone:
		return "none"
	case MilestoneEmailVerified:
		return "email_verified"
	case MilestoneTRNLookupCompleted:
		return "trn_lookup_completed"
	case MilestoneComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Canonical step paths. Handlers never hand-code a "next step" URL; they
// redirect to whatever [State.NextHopURL] returns.
const (
	PathEmail             = "/sign-in/email"
	PathEmailConfirmation = "/sign-in/email-confirmation"
	PathTRN               = "/sign-in/trn"
	PathTRNInUse          = "/sign-in/trn/in-use"
	PathChooseEmail       = "/sign-in/trn/choose-email"
	PathConfirmation      = "/sign-in/confirmation"
)

// JourneyIDParam is the query parameter that carries the opaque journey
// identifier between requests.
const JourneyIDParam = "journey_id"

// LastMilestone derives the furthest milestone reached from current field
// values. The predicate is monotonic: once a milestone is reached it stays
// reached across every transition except Reset.
func (s *State) LastMilestone() Milestone {
	if s.emailAddress == "" || !s.emailVerified {
		return MilestoneNone
	}
	if s.userID != "" && !s.completedAt.IsZero() {
		// Journeys that never required record matching complete without a
		// lookup outcome.
		return MilestoneComplete
	}
	if s.trnLookupStatus == nil {
		return MilestoneEmailVerified
	}
	return MilestoneTRNLookupCompleted
}

// NextHopURL computes the canonical URL the user should be sent to next,
// from the current milestone and the conflict sub-state. It is the single
// source of truth for every redirect in the flow.
func (s *State) NextHopURL() string {
	if s.LastMilestone() == MilestoneComplete {
		return s.oauth.PostSignInURL
	}

	switch {
	case s.emailAddress == "":
		return s.stepURL(PathEmail)
	case !s.emailVerified:
		return s.stepURL(PathEmailConfirmation)
	case s.trnLookupState == ConflictExistingTRNFound:
		return s.stepURL(PathTRNInUse)
	case s.trnLookupState == ConflictOwnerEmailVerified:
		return s.stepURL(PathChooseEmail)
	case s.trnLookupStatus == nil:
		return s.stepURL(PathTRN)
	default:
		return s.stepURL(PathConfirmation)
	}
}

func (s *State) stepURL(path string) string {
	return path + "?" + JourneyIDParam + "=" + url.QueryEscape(s.journeyID)
}
