// Package stores holds the redis-backed short-lived state of the auth
// core. Nothing here is durable identity data; every record carries a TTL.
package stores

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCodeNotFound means no pending code exists for the recipient.
	ErrCodeNotFound = errors.New("confirmation code not found")
	// ErrCodeMismatch means the supplied code did not match.
	ErrCodeMismatch = errors.New("confirmation code mismatch")
	// ErrCodeAttemptsExceeded means the code burned through its verify
	// attempts and was discarded.
	ErrCodeAttemptsExceeded = errors.New("confirmation code attempts exceeded")
	// ErrCodeBackend wraps redis failures.
	ErrCodeBackend = errors.New("confirmation backend unavailable")
)

type codeRecord struct {
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
}

// ConfirmationStore issues and consumes one-time confirmation codes keyed
// by (channel, recipient). A code is consumed exactly once; failed verify
// attempts are counted atomically and the record is discarded once the
// bound is hit.
type ConfirmationStore struct {
	redis       redis.UniversalClient
	prefix      string
	digits      int
	maxAttempts int
}

// NewConfirmationStore creates a store. digits defaults to 6, maxAttempts
// to 3.
func NewConfirmationStore(client redis.UniversalClient, prefix string, digits, maxAttempts int) *ConfirmationStore {
	if prefix == "" {
		prefix = "cc"
	}
	if digits <= 0 {
		digits = 6
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &ConfirmationStore{
		redis:       client,
		prefix:      prefix,
		digits:      digits,
		maxAttempts: maxAttempts,
	}
}

func (s *ConfirmationStore) key(channel, recipient string) string {
	return s.prefix + ":" + channel + ":" + recipient
}

// Issue generates a fresh numeric code for the recipient, replacing any
// pending one, and stores it for ttl.
func (s *ConfirmationStore) Issue(ctx context.Context, channel, recipient string, ttl time.Duration) (string, error) {
	code, err := randomDigits(s.digits)
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(codeRecord{Code: code})
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.key(channel, recipient), encoded, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodeBackend, err)
	}
	return code, nil
}

// Verify consumes the pending code when it matches. A mismatch increments
// the attempt counter under WATCH so concurrent guesses cannot bypass the
// bound.
func (s *ConfirmationStore) Verify(ctx context.Context, channel, recipient, code string) error {
	const maxRetries = 4
	key := s.key(channel, recipient)

	for i := 0; i < maxRetries; i++ {
		var verifyErr error
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var record codeRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}

			if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) == 1 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			record.Attempts++
			if record.Attempts >= s.maxAttempts {
				verifyErr = ErrCodeAttemptsExceeded
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			verifyErr = ErrCodeMismatch
			encoded, err := json.Marshal(record)
			if err != nil {
				return err
			}
			remaining, err := tx.TTL(ctx, key).Result()
			if err != nil {
				return err
			}
			if remaining < 0 {
				remaining = 0
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, remaining)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			return verifyErr
		case errors.Is(err, redis.Nil):
			return ErrCodeNotFound
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("%w: %v", ErrCodeBackend, err)
		}
	}
	return fmt.Errorf("%w: verify retries exhausted", ErrCodeBackend)
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = '0' + byte(d.Int64())
	}
	return string(digits), nil
}
