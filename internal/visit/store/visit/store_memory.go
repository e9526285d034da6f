// Package visit persists the visit ledger.
//
// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when no matching open visit exists
// - Return ErrConflict when a check-in collides with an open visit
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
package visit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gatepass/internal/visit/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// InMemory stores visits in a map for tests/dev and single-node runs.
// The open-record-per-subject invariant is enforced under the write lock.
type InMemory struct {
	mu     sync.RWMutex
	visits map[id.VisitID]*models.VisitRecord
}

// NewInMemory constructs an empty in-memory visit store.
func NewInMemory() *InMemory {
	return &InMemory{
		visits: make(map[id.VisitID]*models.VisitRecord),
	}
}

func copyRecord(v *models.VisitRecord) *models.VisitRecord {
	copied := *v
	if v.CheckoutAt != nil {
		at := *v.CheckoutAt
		copied.CheckoutAt = &at
	}
	if v.Extra != nil {
		extra := make(map[string]string, len(v.Extra))
		for k, val := range v.Extra {
			extra[k] = val
		}
		copied.Extra = extra
	}
	return &copied
}

// CreateIfNoActive inserts the record unless the subject already has an open
// visit. Check and insert happen under one lock so concurrent check-ins for
// the same subject cannot both succeed.
func (s *InMemory) CreateIfNoActive(_ context.Context, record *models.VisitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.visits {
		if v.FaydaID == record.FaydaID && v.IsActive() {
			return fmt.Errorf("subject already has an open visit: %w", sentinel.ErrConflict)
		}
	}
	s.visits[record.ID] = copyRecord(record)
	return nil
}

// FindActiveByFayda returns the subject's open visit.
func (s *InMemory) FindActiveByFayda(_ context.Context, faydaID id.FaydaID) (*models.VisitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.visits {
		if v.FaydaID == faydaID && v.IsActive() {
			return copyRecord(v), nil
		}
	}
	return nil, fmt.Errorf("no active visit found: %w", sentinel.ErrNotFound)
}

// FindActiveByID returns the open visit with the given ID.
func (s *InMemory) FindActiveByID(_ context.Context, visitID id.VisitID) (*models.VisitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visits[visitID]
	if !ok || !v.IsActive() {
		return nil, fmt.Errorf("no active visit found: %w", sentinel.ErrNotFound)
	}
	return copyRecord(v), nil
}

// CheckOut closes the open visit with the given ID. A visit that is unknown
// or already closed reports not found; CheckoutAt is never rewritten.
func (s *InMemory) CheckOut(_ context.Context, visitID id.VisitID, now time.Time) (*models.VisitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[visitID]
	if !ok || !v.IsActive() {
		return nil, fmt.Errorf("no active visit found: %w", sentinel.ErrNotFound)
	}
	v.ApplyCheckout(now)
	return copyRecord(v), nil
}

// List returns the filtered ledger, newest check-in first.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.VisitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VisitRecord
	for _, v := range s.visits {
		if filter.Matches(v) {
			out = append(out, copyRecord(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckinAt.After(out[j].CheckinAt) })
	return out, nil
}

// Aggregate computes the dashboard numbers for check-ins in [from, until).
func (s *InMemory) Aggregate(_ context.Context, from, until time.Time) (*models.Aggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := &models.Aggregates{PeakHour: -1}
	var totalCompleted time.Duration
	hourly := make(map[int]int)
	byHost := make(map[string]int)

	for _, v := range s.visits {
		if v.IsActive() {
			agg.ActiveVisits++
		}
		if v.CheckinAt.Before(from) || !v.CheckinAt.Before(until) {
			continue
		}
		agg.VisitorsToday++
		hourly[v.CheckinAt.Hour()]++
		byHost[v.HostName]++
		if d, ok := v.Duration(); ok {
			agg.CompletedToday++
			totalCompleted += d
		}
	}

	if agg.CompletedToday > 0 {
		agg.AvgCompleted = totalCompleted / time.Duration(agg.CompletedToday)
	}
	for hour := 0; hour < 24; hour++ {
		count := hourly[hour]
		if count > 0 && (agg.PeakHour == -1 || count > hourly[agg.PeakHour]) {
			agg.PeakHour = hour
		}
	}
	for host, count := range byHost {
		if count > agg.BusiestHostCount {
			agg.BusiestHost = host
			agg.BusiestHostCount = count
		}
	}
	return agg, nil
}
