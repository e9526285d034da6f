package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gatepass/internal/oidc/models"
	"gatepass/pkg/platform/sentinel"
)

const (
	// Redis key prefix for handshake sessions
	sessionKeyPrefix = "authsess:state:"

	// expiredRetention keeps an expired session's key around past its
	// window so Resolve can report ErrExpired instead of ErrNotFound to a
	// visitor who came back late. Redis reclaims the key afterwards.
	expiredRetention = 10 * time.Minute
)

// RedisStore is the Redis-backed session store for multi-instance
// deployments. Expiry is enforced twice: by the payload's ExpiresAt (the
// authoritative check) and by the key TTL (storage reclamation).
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed session store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(state string) string {
	return sessionKeyPrefix + state
}

// Create stores the session under its state with SETNX semantics so a state
// collision surfaces as a conflict instead of silently overwriting.
func (s *RedisStore) Create(ctx context.Context, session *models.AuthSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal auth session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt) + expiredRetention
	if ttl <= 0 {
		ttl = expiredRetention
	}

	ok, err := s.client.SetNX(ctx, sessionKey(session.State), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store auth session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session state already exists: %w", sentinel.ErrConflict)
	}
	return nil
}

// Resolve returns the live session for a state.
func (s *RedisStore) Resolve(ctx context.Context, state string, now time.Time) (*models.AuthSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(state)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("auth session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch auth session: %w", err)
	}

	var session models.AuthSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode auth session: %w", err)
	}
	if session.IsExpired(now) {
		return nil, fmt.Errorf("auth session expired: %w", sentinel.ErrExpired)
	}
	return &session, nil
}

// Consume removes the session. Deleting an absent key is a no-op.
func (s *RedisStore) Consume(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, sessionKey(state)).Err(); err != nil {
		return fmt.Errorf("consume auth session: %w", err)
	}
	return nil
}

// SweepExpired walks the session keyspace and removes sessions whose payload
// expiry has passed. Redis TTLs reclaim keys on their own; the sweep exists
// to release payload-expired sessions still inside the retention window and
// to report a count for the maintenance metrics.
func (s *RedisStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	swept := 0
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return swept, fmt.Errorf("fetch auth session during sweep: %w", err)
		}

		var session models.AuthSession
		if err := json.Unmarshal(raw, &session); err != nil {
			// Unreadable payloads are dead weight, reclaim them too.
			if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
				return swept, fmt.Errorf("delete corrupt auth session: %w", delErr)
			}
			swept++
			continue
		}
		if session.IsExpired(now) {
			if err := s.client.Del(ctx, key).Err(); err != nil {
				return swept, fmt.Errorf("delete expired auth session: %w", err)
			}
			swept++
		}
	}
	if err := iter.Err(); err != nil {
		return swept, fmt.Errorf("scan auth sessions: %w", err)
	}
	return swept, nil
}
