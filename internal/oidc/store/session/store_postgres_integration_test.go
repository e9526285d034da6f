//go:build integration

package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatepass/internal/oidc/models"
	"gatepass/internal/oidc/store/session"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/testutil/containers"
)

type PostgresSessionStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *session.PostgresStore
}

func TestPostgresSessionStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSessionStoreSuite))
}

func (s *PostgresSessionStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = session.NewPostgres(s.postgres.DB)
}

func (s *PostgresSessionStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "auth_sessions"))
}

func newAuthSession(state string, now time.Time) *models.AuthSession {
	return &models.AuthSession{
		State:        state,
		FaydaID:      id.FaydaID("612345678901"),
		CodeVerifier: "verifier-" + state,
		CreatedAt:    now,
		ExpiresAt:    now.Add(15 * time.Minute),
	}
}

func (s *PostgresSessionStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.store.Create(ctx, newAuthSession("st_pg", now)))

	found, err := s.store.Resolve(ctx, "st_pg", now)
	s.Require().NoError(err)
	s.Equal(id.FaydaID("612345678901"), found.FaydaID)
	s.Equal("verifier-st_pg", found.CodeVerifier)
	s.WithinDuration(now.Add(15*time.Minute), found.ExpiresAt, time.Second)
}

// TestConcurrentCreateSameState verifies the primary key makes state
// collisions a conflict with exactly one winner.
func (s *PostgresSessionStoreSuite) TestConcurrentCreateSameState() {
	ctx := context.Background()
	now := time.Now().UTC()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newAuthSession("st_race", now))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get conflict error")
}

func (s *PostgresSessionStoreSuite) TestExpiry() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.store.Create(ctx, newAuthSession("st_stale", now.Add(-20*time.Minute))))

	_, err := s.store.Resolve(ctx, "st_stale", now)
	s.Require().ErrorIs(err, sentinel.ErrExpired)

	_, err = s.store.Resolve(ctx, "st_unknown", now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSessionStoreSuite) TestConsume() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.store.Create(ctx, newAuthSession("st_done", now)))
	s.Require().NoError(s.store.Consume(ctx, "st_done"))

	_, err := s.store.Resolve(ctx, "st_done", now)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Consume(ctx, "st_done"))
}

func (s *PostgresSessionStoreSuite) TestSweepExpired() {
	ctx := context.Background()
	now := time.Now().UTC()

	s.Require().NoError(s.store.Create(ctx, newAuthSession("st_live", now)))
	s.Require().NoError(s.store.Create(ctx, newAuthSession("st_old_1", now.Add(-20*time.Minute))))
	s.Require().NoError(s.store.Create(ctx, newAuthSession("st_old_2", now.Add(-30*time.Minute))))

	swept, err := s.store.SweepExpired(ctx, now)
	s.Require().NoError(err)
	s.Equal(2, swept)

	_, err = s.store.Resolve(ctx, "st_live", now)
	s.Require().NoError(err)
}
