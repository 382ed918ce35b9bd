package idjourney

import (
	"context"

	"github.com/edugate/idjourney/internal"
	"github.com/edugate/idjourney/journey"
)

// StartJourney creates and persists a fresh journey, returning its state.
// The journey identifier is opaque to the client and travels as a request
// parameter.
func (e *Engine) StartJourney(ctx context.Context, input StartJourneyInput) (*journey.State, error) {
	if e.journeys == nil {
		return nil, ErrEngineNotReady
	}

	jid, err := internal.NewJourneyID()
	if err != nil {
		return nil, err
	}

	state := journey.New(jid.String(), input.Requirements, input.OAuth, e.clock.Now())
	if err := e.journeys.Save(ctx, state, e.config.Journey.Retention); err != nil {
		return nil, mapJourneyStoreError(err)
	}

	e.metricInc(MetricJourneyStarted)
	e.emitAudit(ctx, auditEventJourneyStart, true, state.JourneyID(), "", nil, nil)
	return state, nil
}

// ResumeJourney loads the journey for a request and applies the milestone
// gate for the step the request targets. The check order is significant:
// a forged or missing id fails before any state is touched; idle expiry is
// decided before completeness so a long-idle finished journey still
// reports expiry; milestone comparison runs last because it needs valid,
// unexpired state.
//
// Steps that are themselves post-completion content (the completion
// summary page) declare required == MilestoneComplete; only those are
// served once the journey has finished.
func (e *Engine) ResumeJourney(ctx context.Context, journeyID string, required journey.Milestone) (*GateDecision, error) {
	if e.journeys == nil {
		return nil, ErrEngineNotReady
	}

	if _, err := internal.ParseJourneyID(journeyID); err != nil {
		return nil, ErrJourneyNotFound
	}

	state, err := e.journeys.Get(ctx, journeyID)
	if err != nil {
		return nil, mapJourneyStoreError(err)
	}

	now := e.clock.Now()
	if now.Sub(state.LastActiveAt()) > e.config.Journey.IdleTimeout {
		e.metricInc(MetricJourneyExpired)
		e.emitAudit(ctx, auditEventJourneyExpired, false, journeyID, state.UserID(), ErrJourneyExpired, nil)
		return nil, ErrJourneyExpired
	}

	milestone := state.LastMilestone()

	if milestone == journey.MilestoneComplete && required != journey.MilestoneComplete {
		e.metricInc(MetricGateRedirect)
		return &GateDecision{
			State:       state,
			Outcome:     GateRedirectPostSignIn,
			RedirectURL: state.OAuth().PostSignInURL,
		}, nil
	}

	if milestone < required {
		e.metricInc(MetricGateRedirect)
		return &GateDecision{
			State:       state,
			Outcome:     GateRedirectNextHop,
			RedirectURL: state.NextHopURL(),
		}, nil
	}

	state.Touch(now)
	if err := e.journeys.Save(ctx, state, e.config.Journey.Retention); err != nil {
		return nil, mapJourneyStoreError(err)
	}

	e.metricInc(MetricJourneyResumed)
	return &GateDecision{State: state, Outcome: GateProceed}, nil
}

// SaveJourney persists state after a page has applied transitions, and
// refreshes the activity timestamp.
func (e *Engine) SaveJourney(ctx context.Context, state *journey.State) error {
	if e.journeys == nil {
		return ErrEngineNotReady
	}
	state.Touch(e.clock.Now())
	if err := e.journeys.Save(ctx, state, e.config.Journey.Retention); err != nil {
		return mapJourneyStoreError(err)
	}
	return nil
}

// ResetJourney restores an abandoned journey to its unstarted shape,
// keeping the journey id and OAuth hand-back context, and persists it.
func (e *Engine) ResetJourney(ctx context.Context, state *journey.State) error {
	if e.journeys == nil {
		return ErrEngineNotReady
	}

	state.Reset(e.clock.Now())
	if err := e.journeys.Save(ctx, state, e.config.Journey.Retention); err != nil {
		return mapJourneyStoreError(err)
	}

	e.metricInc(MetricJourneyReset)
	e.emitAudit(ctx, auditEventJourneyReset, true, state.JourneyID(), "", nil, nil)
	return nil
}
