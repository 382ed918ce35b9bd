package idjourney

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/edugate/idjourney/internal/audit"
	internalmetrics "github.com/edugate/idjourney/internal/metrics"
	"github.com/edugate/idjourney/journey"
)

// TeacherRecord is a single match returned by the external teacher record
// source.
type TeacherRecord struct {
	TRN                     string
	FirstName               string
	LastName                string
	DateOfBirth             time.Time
	NationalInsuranceNumber string
	EmailAddresses          []string
	ActiveSanctions         bool
}

// RecordQuery is the attribute subset sent to the record source. Empty
// fields are not part of the search.
type RecordQuery struct {
	FirstName               string
	LastName                string
	PreviousLastName        string
	DateOfBirth             time.Time
	NationalInsuranceNumber string
	TRN                     string
	ITTProviderName         string
}

// RecordSource is the external teacher record system. Implementations must
// respect context cancellation; the engine treats a cancelled call as "no
// result", never as a crash.
type RecordSource interface {
	FindRecords(ctx context.Context, query RecordQuery) ([]TeacherRecord, error)
	GetRecordByTRN(ctx context.Context, trn string) (*TeacherRecord, error)
}

// AccountRecord is a local user account as seen by the engine.
type AccountRecord struct {
	UserID       string
	EmailAddress string
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	TRN          string
}

// CreateAccountInput carries the attributes gathered during a journey into
// account creation.
type CreateAccountInput struct {
	EmailAddress       string
	FirstName          string
	LastName           string
	PreferredFirstName string
	PreferredLastName  string
	DateOfBirth        time.Time
	TRN                string
}

// AccountStore is the local account database. The engine issues plain data
// operations and trusts the store's uniqueness constraints (one account per
// TRN, one per email). A missing account is (nil, nil), not an error.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*AccountRecord, error)
	FindByTRN(ctx context.Context, trn string) (*AccountRecord, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (*AccountRecord, error)
	UpdateAccountEmail(ctx context.Context, userID, email string) error
}

// Notifier delivers passcodes over email or SMS. A returned error surfaces
// as a generation failure to the caller.
type Notifier interface {
	SendPasscode(ctx context.Context, destination, code string) error
}

// VerifyPasscodeResult is the closed set of passcode verification outcomes.
type VerifyPasscodeResult uint8

const (
	// PasscodeOK means the submitted code matched the live code, which has
	// been consumed and cannot be used again.
	PasscodeOK VerifyPasscodeResult = iota
	// PasscodeIncorrect means the submission matched no live code.
	PasscodeIncorrect
	// PasscodeExpired means the submission matched a code past its TTL.
	// When the expiry is inside the resend grace window, exactly one fresh
	// code has been generated and sent.
	PasscodeExpired
	// PasscodeRateLimited means the caller exceeded the verification
	// budget; the submission was not compared against anything.
	PasscodeRateLimited
)

func (r VerifyPasscodeResult) String() string {
	switch r {
	case PasscodeOK:
		return "ok"
	case PasscodeIncorrect:
		return "incorrect"
	case PasscodeExpired:
		return "expired"
	case PasscodeRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// GateOutcome is the closed set of milestone gate decisions for a request
// that resolved to valid, unexpired state.
type GateOutcome uint8

const (
	// GateProceed means the requested step is legal for the journey's
	// current milestone.
	GateProceed GateOutcome = iota
	// GateRedirectNextHop means the journey has not yet reached the
	// milestone the step requires; redirect to the canonical next step.
	GateRedirectNextHop
	// GateRedirectPostSignIn means the journey is already complete and
	// the requested step is not post-completion content; redirect to the
	// relying client.
	GateRedirectPostSignIn
)

// GateDecision is returned by [Engine.ResumeJourney].
type GateDecision struct {
	State       *journey.State
	Outcome     GateOutcome
	RedirectURL string
}

// StartJourneyInput configures a new journey.
type StartJourneyInput struct {
	Requirements journey.Requirements
	OAuth        journey.OAuthContext
}

// CompleteJourneyResult is returned by [Engine.CompleteJourney].
type CompleteJourneyResult struct {
	UserID        string
	FirstTimeUser bool
	SessionToken  string
	RedirectURL   string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter in the in-process metrics registry.
type MetricID = internalmetrics.MetricID

const (
	MetricJourneyStarted      = internalmetrics.MetricJourneyStarted
	MetricJourneyResumed      = internalmetrics.MetricJourneyResumed
	MetricJourneyExpired      = internalmetrics.MetricJourneyExpired
	MetricJourneyReset        = internalmetrics.MetricJourneyReset
	MetricGateRedirect        = internalmetrics.MetricGateRedirect
	MetricPasscodeGenerated   = internalmetrics.MetricPasscodeGenerated
	MetricPasscodeResent      = internalmetrics.MetricPasscodeResent
	MetricPasscodeRateLimited = internalmetrics.MetricPasscodeRateLimited
	MetricPasscodeVerified    = internalmetrics.MetricPasscodeVerified
	MetricPasscodeIncorrect   = internalmetrics.MetricPasscodeIncorrect
	MetricPasscodeExpired     = internalmetrics.MetricPasscodeExpired
	MetricTRNLookupMatched    = internalmetrics.MetricTRNLookupMatched
	MetricTRNLookupAmbiguous  = internalmetrics.MetricTRNLookupAmbiguous
	MetricTRNLookupNone       = internalmetrics.MetricTRNLookupNone
	MetricTRNConflictEntered  = internalmetrics.MetricTRNConflictEntered
	MetricTRNConflictResolved = internalmetrics.MetricTRNConflictResolved
	MetricEmailChoiceRejected = internalmetrics.MetricEmailChoiceRejected
	MetricAccountCreated      = internalmetrics.MetricAccountCreated
	MetricJourneyCompleted    = internalmetrics.MetricJourneyCompleted
)

// Metrics holds the engine's atomic counters.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot = internalmetrics.Snapshot
