package idjourney

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/edugate/idjourney/internal"
	"github.com/edugate/idjourney/journey"
)

// GeneratePasscode creates and delivers a one-time passcode for the given
// destination (email address or phone number). Any previously live code for
// the destination is superseded. Returns the plaintext code for the
// caller's audit trail only; the store keeps a hash.
func (e *Engine) GeneratePasscode(ctx context.Context, destination string) (string, error) {
	if e.passcodes == nil || e.limiter == nil || e.notifier == nil {
		return "", ErrEngineNotReady
	}

	destination, err := normalizeDestination(destination)
	if err != nil {
		return "", err
	}

	if err := e.limiter.CheckGeneration(ctx, clientIPFromContext(ctx)); err != nil {
		mapped := mapPasscodeLimiterError(err)
		if errors.Is(mapped, ErrPasscodeRateLimited) {
			e.metricInc(MetricPasscodeRateLimited)
		}
		e.emitAudit(ctx, auditEventPasscodeGenerate, false, "", "", mapped, destinationMetadata(destination))
		return "", mapped
	}

	code, err := e.generateAndSend(ctx, destination)
	if err != nil {
		e.emitAudit(ctx, auditEventPasscodeGenerate, false, "", "", err, destinationMetadata(destination))
		return "", err
	}

	e.metricInc(MetricPasscodeGenerated)
	e.emitAudit(ctx, auditEventPasscodeGenerate, true, "", "", nil, destinationMetadata(destination))
	return code, nil
}

// VerifyPasscode checks a submitted code against the live code for the
// destination. Format validation happens before any store or rate-limit
// work and surfaces as [ErrPasscodeFormat] without consuming budget. A
// correct-but-expired code inside the resend grace window triggers exactly
// one fresh code; the returned error is non-nil in that case only when the
// resend itself failed.
func (e *Engine) VerifyPasscode(ctx context.Context, destination, submitted string) (VerifyPasscodeResult, error) {
	if e.passcodes == nil || e.limiter == nil {
		return PasscodeIncorrect, ErrEngineNotReady
	}

	destination, err := normalizeDestination(destination)
	if err != nil {
		return PasscodeIncorrect, err
	}

	submitted = strings.TrimSpace(submitted)
	if !validPasscodeFormat(submitted, e.config.Passcode.Digits) {
		return PasscodeIncorrect, ErrPasscodeFormat
	}

	if err := e.limiter.CheckVerification(ctx, clientIPFromContext(ctx)); err != nil {
		mapped := mapPasscodeLimiterError(err)
		if errors.Is(mapped, ErrPasscodeRateLimited) {
			e.metricInc(MetricPasscodeRateLimited)
			e.emitAudit(ctx, auditEventPasscodeVerify, false, "", "", mapped, destinationMetadata(destination))
			return PasscodeRateLimited, nil
		}
		return PasscodeIncorrect, mapped
	}

	outcome, err := e.passcodes.Consume(
		ctx,
		destination,
		internal.HashPasscode(submitted),
		e.config.Passcode.TTL,
		e.config.Passcode.ResendGrace,
	)
	if err != nil {
		return PasscodeIncorrect, ErrStoreUnavailable
	}

	switch outcome {
	case consumeOK:
		e.metricInc(MetricPasscodeVerified)
		e.emitAudit(ctx, auditEventPasscodeVerify, true, "", "", nil, destinationMetadata(destination))
		return PasscodeOK, nil

	case consumeExpired:
		e.metricInc(MetricPasscodeExpired)
		e.emitAudit(ctx, auditEventPasscodeVerify, false, "", "", nil, func() map[string]string {
			return map[string]string{
				"destination": destination,
				"reason":      "expired",
				"resent":      "true",
			}
		})
		if _, err := e.generateAndSend(ctx, destination); err != nil {
			return PasscodeExpired, err
		}
		e.metricInc(MetricPasscodeResent)
		return PasscodeExpired, nil

	default:
		e.metricInc(MetricPasscodeIncorrect)
		e.emitAudit(ctx, auditEventPasscodeVerify, false, "", "", nil, func() map[string]string {
			return map[string]string{
				"destination": destination,
				"reason":      "incorrect",
			}
		})
		return PasscodeIncorrect, nil
	}
}

// generateAndSend mints a code, persists its hash, and hands it to the
// notifier. A delivery failure is surfaced as a generation failure.
func (e *Engine) generateAndSend(ctx context.Context, destination string) (string, error) {
	code, err := internal.NewPasscode(e.config.Passcode.Digits)
	if err != nil {
		return "", err
	}

	record := &passcodeRecord{
		CodeHash:    internal.HashPasscode(code),
		GeneratedAt: e.clock.Now().Unix(),
	}
	retention := e.config.Passcode.TTL + e.config.Passcode.ResendGrace
	if err := e.passcodes.Save(ctx, destination, record, retention); err != nil {
		return "", ErrStoreUnavailable
	}

	if err := e.notifier.SendPasscode(ctx, destination, code); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	return code, nil
}

// validPasscodeFormat checks length and digits only. It deliberately does
// not touch the store, so malformed input never counts against a budget.
func validPasscodeFormat(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// normalizeDestination canonicalizes an email address or phone number so
// that generation and verification agree on the key.
func normalizeDestination(destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", ErrDestinationInvalid
	}

	if strings.Contains(destination, "@") {
		return journey.NormalizeEmail(destination), nil
	}

	var b strings.Builder
	for i, r := range destination {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
			// separators dropped
		default:
			return "", ErrDestinationInvalid
		}
	}
	normalized := b.String()
	if len(strings.TrimPrefix(normalized, "+")) < 7 {
		return "", ErrDestinationInvalid
	}
	return normalized, nil
}

func destinationMetadata(destination string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{
			"destination": destination,
		}
	}
}
