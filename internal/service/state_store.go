package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vividly/identity-service/pkg/database"
)

const stateTokenBytes = 32

// redisStateStore keeps one-time CSRF state tokens in Redis. Expiry rides
// on the key TTL; consumption is a single GETDEL, so a value presented
// twice is accepted at most once, even when the presentations race.
type redisStateStore struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewStateStore creates a Redis-backed OAuth state store
func NewStateStore(redis *database.Redis, ttl time.Duration) StateStore {
	return &redisStateStore{
		redis: redis,
		ttl:   ttl,
	}
}

type stateRecord struct {
	Provider string    `json:"provider"`
	IssuedAt time.Time `json:"issued_at"`
}

// Issue generates a cryptographically random state token and stores it
// unconsumed with the configured TTL.
func (s *redisStateStore) Issue(ctx context.Context, provider string) (string, error) {
	buf := make([]byte, stateTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(buf)

	record, err := json.Marshal(stateRecord{
		Provider: provider,
		IssuedAt: time.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal state record: %w", err)
	}

	if err := s.redis.Client.Set(ctx, stateKey(value), record, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store state token: %w", err)
	}

	return value, nil
}

// Consume atomically checks and invalidates a state token. Missing key
// (never issued, expired, or already consumed) and provider mismatch all
// fail the same way.
func (s *redisStateStore) Consume(ctx context.Context, value, provider string) error {
	data, err := s.redis.Client.GetDel(ctx, stateKey(value)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrStateInvalid
		}
		return fmt.Errorf("failed to consume state token: %w", err)
	}

	var record stateRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return ErrStateInvalid
	}

	if record.Provider != provider {
		return ErrStateInvalid
	}

	return nil
}

func stateKey(value string) string {
	return "oauthstate:" + value
}
