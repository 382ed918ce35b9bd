package idjourney

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const passcodeRecordVersionV1 = 1

var errPasscodeRedisUnavailable = errors.New("passcode redis unavailable")

// passcodeRecord is the live code for one destination. A destination has at
// most one live code: saving a new record supersedes the previous one.
type passcodeRecord struct {
	CodeHash    [32]byte
	GeneratedAt int64
}

// consumeOutcome is the store-level result of a verification attempt.
type consumeOutcome uint8

const (
	consumeOK consumeOutcome = iota
	consumeIncorrect
	// consumeExpired: the code matched but is past its TTL, and the record
	// is still inside the resend grace window.
	consumeExpired
	consumeNotFound
)

type passcodeStore struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

func newPasscodeStore(redisClient *redis.Client, prefix string, now func() time.Time) *passcodeStore {
	return &passcodeStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *passcodeStore) key(destination string) string {
	return s.prefix + ":" + destination
}

// Save persists the live code for a destination, superseding any previous
// one. Retention covers the code TTL plus the resend grace window so an
// expired-but-recent submission can still be distinguished from a wrong one.
func (s *passcodeStore) Save(ctx context.Context, destination string, record *passcodeRecord, retention time.Duration) error {
	encoded, err := encodePasscodeRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(destination), encoded, retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPasscodeRedisUnavailable, err)
	}

	return nil
}

// Consume compares a submitted code hash against the live record. A match
// on an unexpired code deletes the record in the same transaction, so a
// replayed submission on a concurrent request loses the race and reads no
// record. The grace cutoff is enforced against the injected clock, not
// just Redis TTL, so it is deterministic under test.
func (s *passcodeStore) Consume(
	ctx context.Context,
	destination string,
	providedHash [32]byte,
	codeTTL time.Duration,
	grace time.Duration,
) (consumeOutcome, error) {
	const maxRetries = 4
	key := s.key(destination)

	for i := 0; i < maxRetries; i++ {
		var outcome consumeOutcome

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePasscodeRecord(data)
			if err != nil {
				return err
			}

			now := s.now()
			generated := time.Unix(record.GeneratedAt, 0)

			if now.After(generated.Add(grace)) {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				outcome = consumeNotFound
				return nil
			}

			if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
				outcome = consumeIncorrect
				return nil
			}

			if now.After(generated.Add(codeTTL)) {
				// Correct but stale. Leave deletion to the caller's
				// regeneration, which overwrites the key anyway.
				outcome = consumeExpired
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			outcome = consumeOK
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return consumeNotFound, nil
			}
			return consumeNotFound, fmt.Errorf("%w: %v", errPasscodeRedisUnavailable, err)
		}

		return outcome, nil
	}

	return consumeNotFound, nil
}

func encodePasscodeRecord(record *passcodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(passcodeRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.GeneratedAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodePasscodeRecord(data []byte) (*passcodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != passcodeRecordVersionV1 {
		return nil, errors.New("invalid passcode record version")
	}

	record := &passcodeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.GeneratedAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
