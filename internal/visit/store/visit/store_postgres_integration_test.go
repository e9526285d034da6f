//go:build integration

package visit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	hostmodels "gatepass/internal/host/models"
	hoststore "gatepass/internal/host/store/host"
	"gatepass/internal/visit/models"
	"gatepass/internal/visit/store/visit"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/testutil/containers"
)

type PostgresVisitStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *visit.PostgresStore
	host     *hostmodels.Host
}

func TestPostgresVisitStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresVisitStoreSuite))
}

func (s *PostgresVisitStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = visit.NewPostgres(s.postgres.DB)
}

// SetupTest resets both tables and seeds one host to satisfy the visits
// foreign key.
func (s *PostgresVisitStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "visits", "hosts"))

	host, err := hostmodels.NewHost(id.NewHostID(), "Sara Tesfaye", "Engineering", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(hoststore.NewPostgres(s.postgres.DB).Create(ctx, host))
	s.host = host
}

func (s *PostgresVisitStoreSuite) newVisit(faydaID string, checkin time.Time) *models.VisitRecord {
	record, err := models.NewVisitRecord(
		id.NewVisitID(),
		id.FaydaID(faydaID),
		"Abebe Bikila",
		"https://esignet.example/photos/abebe.jpg",
		s.host.ID,
		s.host.Name,
		"quarterly supplier meeting",
		map[string]string{"badge": "V-17"},
		checkin,
	)
	s.Require().NoError(err)
	return record
}

func (s *PostgresVisitStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	record := s.newVisit("612345678901", now)
	s.Require().NoError(s.store.CreateIfNoActive(ctx, record))

	found, err := s.store.FindActiveByFayda(ctx, record.FaydaID)
	s.Require().NoError(err)
	s.Equal(record.ID, found.ID)
	s.Equal(record.Name, found.Name)
	s.Equal(record.PhotoURL, found.PhotoURL)
	s.Equal(s.host.ID, found.HostID)
	s.Equal(map[string]string{"badge": "V-17"}, found.Extra)
	s.WithinDuration(now, found.CheckinAt, time.Millisecond)
	s.Nil(found.CheckoutAt)

	byID, err := s.store.FindActiveByID(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(record.FaydaID, byID.FaydaID)
}

// TestConcurrentCheckIn verifies the partial unique index admits exactly one
// open visit per subject under contention.
func (s *PostgresVisitStoreSuite) TestConcurrentCheckIn() {
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
			err := s.store.CreateIfNoActive(ctx, s.newVisit("612345678901", now))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one check-in should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get conflict error")
}

func (s *PostgresVisitStoreSuite) TestCheckOutRace() {
	ctx := context.Background()
	now := time.Now().UTC()

	record := s.newVisit("612345678901", now)
	s.Require().NoError(s.store.CreateIfNoActive(ctx, record))

	const goroutines = 10
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var notFoundCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.CheckOut(ctx, record.ID, time.Now().UTC())
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrNotFound) {
				notFoundCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one checkout should win")
	s.Equal(int32(goroutines-1), notFoundCount.Load())

	// Subject is free to check in again once the record is closed.
	s.Require().NoError(s.store.CreateIfNoActive(ctx, s.newVisit("612345678901", time.Now().UTC())))
}

func (s *PostgresVisitStoreSuite) TestListFilters() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	open := s.newVisit("612345678901", now)
	closed := s.newVisit("612345678902", now.Add(-2*time.Hour))
	closed.Name = "Tirunesh Dibaba"
	old := s.newVisit("612345678903", now.Add(-48*time.Hour))

	for _, v := range []*models.VisitRecord{open, closed, old} {
		s.Require().NoError(s.store.CreateIfNoActive(ctx, v))
	}
	_, err := s.store.CheckOut(ctx, closed.ID, now.Add(-time.Hour))
	s.Require().NoError(err)

	all, err := s.store.List(ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal(open.ID, all[0].ID, "newest check-in first")
	s.Equal(old.ID, all[2].ID)

	completed, err := s.store.List(ctx, models.ListFilter{Status: models.StatusCompleted})
	s.Require().NoError(err)
	s.Require().Len(completed, 1)
	s.Equal(closed.ID, completed[0].ID)

	recent, err := s.store.List(ctx, models.ListFilter{Since: now.Add(-24 * time.Hour)})
	s.Require().NoError(err)
	s.Len(recent, 2)

	byName, err := s.store.List(ctx, models.ListFilter{Search: "tirunesh"})
	s.Require().NoError(err)
	s.Require().Len(byName, 1)
	s.Equal(closed.ID, byName[0].ID)
}

func (s *PostgresVisitStoreSuite) TestAggregate() {
	ctx := context.Background()
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	checkin := dayStart.Add(9 * time.Hour)

	a := s.newVisit("612345678901", checkin)
	b := s.newVisit("612345678902", checkin.Add(10*time.Minute))
	c := s.newVisit("612345678903", checkin.Add(5*time.Hour))

	for _, v := range []*models.VisitRecord{a, b, c} {
		s.Require().NoError(s.store.CreateIfNoActive(ctx, v))
	}
	_, err := s.store.CheckOut(ctx, a.ID, checkin.Add(30*time.Minute))
	s.Require().NoError(err)
	_, err = s.store.CheckOut(ctx, b.ID, checkin.Add(100*time.Minute))
	s.Require().NoError(err)

	agg, err := s.store.Aggregate(ctx, dayStart, dayStart.Add(24*time.Hour))
	s.Require().NoError(err)

	s.Equal(3, agg.VisitorsToday)
	s.Equal(1, agg.ActiveVisits)
	s.Equal(2, agg.CompletedToday)
	s.Equal(time.Hour, agg.AvgCompleted)
	s.Equal(9, agg.PeakHour)
	s.Equal(s.host.Name, agg.BusiestHost)
	s.Equal(3, agg.BusiestHostCount)
}
