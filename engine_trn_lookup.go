package idjourney

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/edugate/idjourney/journey"
)

// LookupTRN queries the external teacher record source with whatever
// attribute subset the journey currently holds and records the outcome.
// It is invoked opportunistically after any attribute that could narrow an
// ambiguous result set; a definitive single match is only ever accepted
// from a fresh query, never cached across attribute snapshots.
//
// Zero results and two-or-more results are treated identically: no
// auto-match, status derived by [TRNLookupStatusFor]. A cancelled external
// call degrades to "no result" and leaves state consistent. Any other
// record source failure propagates, because there is no safe behavior
// distinct from "no match" and mis-reporting a teacher as recordless is
// worse than failing.
func (e *Engine) LookupTRN(ctx context.Context, state *journey.State) error {
	if e.records == nil {
		return ErrEngineNotReady
	}
	if !state.EmailVerified() {
		return journey.ErrEmailUnverified
	}
	if state.ConflictState() != journey.ConflictNone {
		// Conflict resolution owns the TRN fields now.
		return nil
	}

	query, ok := e.buildRecordQuery(state)
	if !ok {
		// Not enough attributes to search on yet.
		return nil
	}

	matches, err := e.records.FindRecords(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return e.recordNoMatch(ctx, state, "cancelled")
		}
		return fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}

	switch len(matches) {
	case 1:
		return e.recordMatch(ctx, state, &matches[0])
	case 0:
		return e.recordNoMatch(ctx, state, "no_results")
	default:
		e.metricInc(MetricTRNLookupAmbiguous)
		return e.recordNoMatch(ctx, state, "ambiguous")
	}
}

// recordMatch accepts a single definitive match. When the TRN is already
// linked to a different local account, the journey enters the conflict
// branch instead of claiming it.
func (e *Engine) recordMatch(ctx context.Context, state *journey.State, match *TeacherRecord) error {
	owner, err := e.accounts.FindByTRN(ctx, match.TRN)
	if err != nil {
		return ErrAccountUnavailable
	}

	if owner != nil && owner.UserID != state.UserID() {
		if err := state.CompleteTRNLookupForExistingOwner(match.TRN, owner.EmailAddress); err != nil {
			return err
		}
		e.metricInc(MetricTRNConflictEntered)
		e.emitAudit(ctx, auditEventTRNLookup, true, state.JourneyID(), state.UserID(), nil, func() map[string]string {
			return map[string]string{
				"outcome": "existing_owner",
				"trn":     match.TRN,
			}
		})
		return e.SaveJourney(ctx, state)
	}

	if err := state.CompleteTRNLookup(match.TRN, journey.StatusFound); err != nil {
		return err
	}
	e.metricInc(MetricTRNLookupMatched)
	e.emitAudit(ctx, auditEventTRNLookup, true, state.JourneyID(), state.UserID(), nil, func() map[string]string {
		return map[string]string{
			"outcome": "found",
			"trn":     match.TRN,
		}
	})
	return e.SaveJourney(ctx, state)
}

func (e *Engine) recordNoMatch(ctx context.Context, state *journey.State, reason string) error {
	status := TRNLookupStatusFor(nil, state)
	if err := state.CompleteTRNLookup("", status); err != nil {
		return err
	}
	e.metricInc(MetricTRNLookupNone)
	e.emitAudit(ctx, auditEventTRNLookup, true, state.JourneyID(), state.UserID(), nil, func() map[string]string {
		return map[string]string{
			"outcome": status.String(),
			"reason":  reason,
		}
	})
	return e.SaveJourney(ctx, state)
}

// buildRecordQuery assembles the normalized attribute subset. A search
// needs at least a name and date of birth, or a stated TRN.
func (e *Engine) buildRecordQuery(state *journey.State) (RecordQuery, bool) {
	query := RecordQuery{
		FirstName:               strings.TrimSpace(state.OfficialFirstName()),
		LastName:                strings.TrimSpace(state.OfficialLastName()),
		PreviousLastName:        strings.TrimSpace(state.PreviousLastName()),
		DateOfBirth:             state.DateOfBirth(),
		NationalInsuranceNumber: NormalizeNINO(state.NationalInsuranceNumber()),
		TRN:                     NormalizeTRN(state.StatedTRN()),
		ITTProviderName:         strings.TrimSpace(state.ITTProviderName()),
	}

	hasNameAndDOB := query.FirstName != "" && query.LastName != "" && !query.DateOfBirth.IsZero()
	if !hasNameAndDOB && query.TRN == "" {
		return RecordQuery{}, false
	}
	return query, true
}

// TRNLookupStatusFor derives the lookup status from a match result and the
// journey's declared signals. It is a pure function, shared by the
// coordinator and by pages that already hold a match result:
//
//   - a match is Found;
//   - no match with a self-declared TRN or a declared QTS award is Pending,
//     queued for manual reconciliation rather than silently dropped;
//   - no match and no signal is None, the legitimate "no teacher record"
//     outcome.
func TRNLookupStatusFor(match *TeacherRecord, state *journey.State) journey.TRNLookupStatus {
	if match != nil {
		return journey.StatusFound
	}
	if state.StatedTRN() != "" {
		return journey.StatusPending
	}
	if awarded, declared := state.AwardedQTS(); declared && awarded {
		return journey.StatusPending
	}
	return journey.StatusNone
}

// NormalizeTRN strips separators from a declared TRN and left-pads short
// values to the canonical seven digits. Anything that cannot be corrected
// to seven digits normalizes to empty and is excluded from searches.
func NormalizeTRN(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || len(digits) > 7 {
		return ""
	}
	return strings.Repeat("0", 7-len(digits)) + digits
}

// NormalizeNINO upper-cases a National Insurance number and strips
// whitespace.
func NormalizeNINO(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}
