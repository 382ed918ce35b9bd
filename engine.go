package idjourney

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	internalaudit "github.com/edugate/idjourney/internal/audit"
	internalmetrics "github.com/edugate/idjourney/internal/metrics"
	"github.com/edugate/idjourney/token"
)

// Audit event types emitted by the engine.
const (
	auditEventJourneyStart      = "journey_start"
	auditEventJourneyExpired    = "journey_expired"
	auditEventJourneyReset      = "journey_reset"
	auditEventJourneyComplete   = "journey_complete"
	auditEventPasscodeGenerate  = "passcode_generate"
	auditEventPasscodeVerify    = "passcode_verify"
	auditEventTRNLookup         = "trn_lookup"
	auditEventConflictChallenge = "trn_conflict_challenge"
	auditEventConflictChoice    = "trn_conflict_choice"
)

// Deps are the collaborators an Engine needs. Redis, Accounts, and
// Notifier are required; Records is required unless every journey the
// caller starts skips TRN matching entirely.
type Deps struct {
	Redis    *redis.Client
	Records  RecordSource
	Accounts AccountStore
	Notifier Notifier

	// Clock defaults to the system clock.
	Clock Clock
	// AuditSink receives audit events when Config.Audit.Enabled is set.
	AuditSink AuditSink
}

// Engine drives sign-in/registration journeys. It is configured once at
// construction and safe for concurrent use afterwards.
type Engine struct {
	config    Config
	clock     Clock
	journeys  *journeyStore
	passcodes *passcodeStore
	limiter   *passcodeLimiter
	records   RecordSource
	accounts  AccountStore
	notifier  Notifier
	tokens    *token.Manager
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
}

// New builds an Engine from a Config and its collaborators.
func New(cfg Config, deps Deps) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if deps.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if deps.Accounts == nil {
		return nil, errors.New("account store is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("notifier is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}

	e := &Engine{
		config:    cfg,
		clock:     clock,
		journeys:  newJourneyStore(deps.Redis, cfg.Journey.KeyPrefix),
		passcodes: newPasscodeStore(deps.Redis, cfg.Passcode.KeyPrefix, clock.Now),
		limiter:   newPasscodeLimiter(deps.Redis, cfg.RateLimit),
		records:   deps.Records,
		accounts:  deps.Accounts,
		notifier:  deps.Notifier,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, deps.AuditSink),
		metrics: internalmetrics.New(internalmetrics.Config{Enabled: cfg.Metrics.Enabled}),
	}

	if cfg.tokenConfigured() {
		mgr, err := token.NewManager(token.Config{
			SessionTTL:    cfg.Token.SessionTTL,
			SigningMethod: cfg.Token.SigningMethod,
			PrivateKey:    cfg.Token.PrivateKey,
			PublicKey:     cfg.Token.PublicKey,
			Issuer:        cfg.Token.Issuer,
			Audience:      cfg.Token.Audience,
		})
		if err != nil {
			return nil, err
		}
		e.tokens = mgr
	}

	return e, nil
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Metrics returns the engine's counter registry.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// AuditDropped reports how many audit events were discarded due to a full
// dispatcher buffer.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	journeyID, userID string,
	failure error,
	metadata func() map[string]string,
) {
	if e.audit == nil {
		return
	}

	event := internalaudit.Event{
		EventID:   uuid.NewString(),
		Timestamp: e.clock.Now(),
		EventType: eventType,
		JourneyID: journeyID,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
