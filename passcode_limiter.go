package idjourney

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errPasscodeLimited            = errors.New("passcode attempts rate limited")
	errPasscodeLimiterUnavailable = errors.New("passcode limiter unavailable")
)

// passcodeLimiter tracks per-client-IP generation and verification budgets
// over independent fixed windows. It counts attempts, not failures, and is
// deliberately decoupled from the passcode store.
type passcodeLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
}

func newPasscodeLimiter(redisClient *redis.Client, cfg RateLimitConfig) *passcodeLimiter {
	return &passcodeLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckGeneration consumes one generation attempt for the client.
func (l *passcodeLimiter) CheckGeneration(ctx context.Context, ip string) error {
	if !l.config.Enabled || ip == "" {
		return nil
	}
	return l.enforceFixedWindow(ctx, "pcg:"+ip, l.config.MaxGenerations, l.config.GenerationWindow)
}

// CheckVerification consumes one verification attempt for the client.
func (l *passcodeLimiter) CheckVerification(ctx context.Context, ip string) error {
	if !l.config.Enabled || ip == "" {
		return nil
	}
	return l.enforceFixedWindow(ctx, "pcv:"+ip, l.config.MaxVerifications, l.config.VerificationWindow)
}

func (l *passcodeLimiter) enforceFixedWindow(ctx context.Context, key string, max int, window time.Duration) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errPasscodeLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, window).Err(); err != nil {
			return fmt.Errorf("%w: %v", errPasscodeLimiterUnavailable, err)
		}
	}

	if count > int64(max) {
		return errPasscodeLimited
	}

	return nil
}

func mapPasscodeLimiterError(err error) error {
	switch {
	case errors.Is(err, errPasscodeLimited):
		return ErrPasscodeRateLimited
	default:
		return ErrStoreUnavailable
	}
}
