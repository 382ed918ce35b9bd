package idjourney

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edugate/idjourney/journey"
)

var (
	errJourneyStoreMiss        = errors.New("journey record not found")
	errJourneyStoreUnavailable = errors.New("journey redis unavailable")
)

// journeyStore persists journey state as JSON snapshots keyed by journey
// id. Records are retained well past the idle timeout so that a late
// request is answered with a distinct "expired" outcome instead of "not
// found"; idle expiry itself is decided by the engine against the clock.
type journeyStore struct {
	redis  *redis.Client
	prefix string
}

func newJourneyStore(redisClient *redis.Client, prefix string) *journeyStore {
	return &journeyStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *journeyStore) key(journeyID string) string {
	return s.prefix + ":" + journeyID
}

func (s *journeyStore) Save(ctx context.Context, state *journey.State, retention time.Duration) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(state.JourneyID()), encoded, retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", errJourneyStoreUnavailable, err)
	}

	return nil
}

func (s *journeyStore) Get(ctx context.Context, journeyID string) (*journey.State, error) {
	data, err := s.redis.Get(ctx, s.key(journeyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errJourneyStoreMiss
		}
		return nil, fmt.Errorf("%w: %v", errJourneyStoreUnavailable, err)
	}

	state := &journey.State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *journeyStore) Delete(ctx context.Context, journeyID string) error {
	if err := s.redis.Del(ctx, s.key(journeyID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errJourneyStoreUnavailable, err)
	}
	return nil
}

func mapJourneyStoreError(err error) error {
	switch {
	case errors.Is(err, errJourneyStoreMiss):
		return ErrJourneyNotFound
	case errors.Is(err, errJourneyStoreUnavailable):
		return ErrStoreUnavailable
	default:
		return err
	}
}
