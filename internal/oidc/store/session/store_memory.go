// Package session persists the ephemeral OIDC handshake state keyed by the
// opaque state token.
//
// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when no session exists for the state
// - Return ErrExpired when the session exists but is past its window
// - Return ErrConflict when a session already exists for the state
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatepass/internal/oidc/models"
	"gatepass/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in a map for tests/dev and single-node runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.AuthSession
}

// NewInMemory constructs an empty in-memory session store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*models.AuthSession),
	}
}

// Create stores a new session. A state collision is a conflict; the caller
// generated the state from 32 random bytes, so hitting one means reuse.
func (s *InMemoryStore) Create(_ context.Context, session *models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.State]; exists {
		return fmt.Errorf("session state already exists: %w", sentinel.ErrConflict)
	}
	copied := *session
	s.sessions[session.State] = &copied
	return nil
}

// Resolve returns the live session for a state. Expired sessions are reported
// as expired, not absent, so the caller can tell a stale attempt from a
// forged or swept one.
func (s *InMemoryStore) Resolve(_ context.Context, state string, now time.Time) (*models.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[state]
	if !ok {
		return nil, fmt.Errorf("auth session not found: %w", sentinel.ErrNotFound)
	}
	if session.IsExpired(now) {
		return nil, fmt.Errorf("auth session expired: %w", sentinel.ErrExpired)
	}
	copied := *session
	return &copied, nil
}

// Consume removes the session after a successful exchange. Removing an
// already-consumed session is a no-op so concurrent completions do not fail
// the later one on cleanup.
func (s *InMemoryStore) Consume(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, state)
	return nil
}

// SweepExpired removes all sessions past their expiry as of the given time.
// The time parameter is injected for testability (no hidden time.Now() calls).
func (s *InMemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for state, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, state)
			swept++
		}
	}
	return swept, nil
}
