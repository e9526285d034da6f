// Package service orchestrates the visit register: check-in, lookup,
// checkout, listings, and the dashboard summary.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	hostmodels "gatepass/internal/host/models"
	"gatepass/internal/visit/metrics"
	"gatepass/internal/visit/models"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// VisitStore persists the visit ledger.
type VisitStore interface {
	CreateIfNoActive(ctx context.Context, record *models.VisitRecord) error
	FindActiveByFayda(ctx context.Context, faydaID id.FaydaID) (*models.VisitRecord, error)
	FindActiveByID(ctx context.Context, visitID id.VisitID) (*models.VisitRecord, error)
	CheckOut(ctx context.Context, visitID id.VisitID, now time.Time) (*models.VisitRecord, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.VisitRecord, error)
	Aggregate(ctx context.Context, from, until time.Time) (*models.Aggregates, error)
}

// HostDirectory is the slice of the host service the register needs.
type HostDirectory interface {
	GetHost(ctx context.Context, hostID id.HostID) (*hostmodels.Host, error)
	CountActive(ctx context.Context) (int, error)
}

// Service implements the register operations.
type Service struct {
	visits  VisitStore
	hosts   HostDirectory
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures optional service dependencies.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables register metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the visit service.
func New(visits VisitStore, hosts HostDirectory, opts ...Option) *Service {
	s := &Service{
		visits: visits,
		hosts:  hosts,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckInParams carries the visitor-entered check-in fields. FaydaID and
// Name normally come from a completed verification flow.
type CheckInParams struct {
	FaydaID  string
	Name     string
	PhotoURL string
	HostID   id.HostID
	Reason   string
	Extra    map[string]string
}

// CheckIn registers a visitor against an active host. A subject with an open
// visit gets a conflict error carrying the earlier check-in time.
func (s *Service) CheckIn(ctx context.Context, params CheckInParams) (*models.VisitRecord, error) {
	faydaID, err := id.ParseFaydaID(params.FaydaID)
	if err != nil {
		return nil, err
	}

	host, err := s.hosts.GetHost(ctx, params.HostID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown host")
		}
		return nil, err
	}
	if !host.Active {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "host is not accepting visitors")
	}

	record, err := models.NewVisitRecord(
		id.NewVisitID(),
		faydaID,
		params.Name,
		params.PhotoURL,
		host.ID,
		host.Name,
		params.Reason,
		params.Extra,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := s.visits.CreateIfNoActive(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.IncrementCheckInConflicts()
			}
			return nil, s.openVisitConflict(ctx, faydaID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record check-in")
	}

	if s.metrics != nil {
		s.metrics.IncrementCheckIns()
	}
	s.logger.InfoContext(ctx, "visitor checked in",
		"visit_id", record.ID,
		"host_id", record.HostID,
		"host_name", record.HostName,
	)
	return record, nil
}

// openVisitConflict builds the conflict error for a subject who is already
// inside, carrying the earlier check-in time when it can still be read.
func (s *Service) openVisitConflict(ctx context.Context, faydaID id.FaydaID) error {
	prior, err := s.visits.FindActiveByFayda(ctx, faydaID)
	if err != nil {
		// The open visit closed between the insert and this read. The
		// conflict already happened, so report it without the timestamp.
		return dErrors.New(dErrors.CodeConflict, "visitor is already checked in")
	}
	return dErrors.Newf(dErrors.CodeConflict,
		"visitor is already checked in since %s", prior.CheckinAt.Format(time.RFC3339))
}

// FindActive looks up the open visit by visit ID or by subject. Exactly one
// identifier is needed; visit ID wins when both are sent.
func (s *Service) FindActive(ctx context.Context, faydaID, visitID string) (*models.VisitRecord, error) {
	switch {
	case visitID != "":
		parsed, err := id.ParseVisitID(visitID)
		if err != nil {
			return nil, err
		}
		record, err := s.visits.FindActiveByID(ctx, parsed)
		if err != nil {
			return nil, translateVisitErr(err)
		}
		return record, nil
	case faydaID != "":
		parsed, err := id.ParseFaydaID(faydaID)
		if err != nil {
			return nil, err
		}
		record, err := s.visits.FindActiveByFayda(ctx, parsed)
		if err != nil {
			return nil, translateVisitErr(err)
		}
		return record, nil
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "fayda_id or visit_id is required")
	}
}

// CheckOut closes the open visit identified by visit ID or subject.
func (s *Service) CheckOut(ctx context.Context, faydaID, visitID string) (*models.VisitRecord, error) {
	record, err := s.FindActive(ctx, faydaID, visitID)
	if err != nil {
		return nil, err
	}
	return s.close(ctx, record.ID, "regular")
}

// ForceCheckOut closes a visit by ID on behalf of staff, for visitors who
// left without checking out.
func (s *Service) ForceCheckOut(ctx context.Context, visitID string) (*models.VisitRecord, error) {
	if visitID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "visit_id is required")
	}
	parsed, err := id.ParseVisitID(visitID)
	if err != nil {
		return nil, err
	}
	return s.close(ctx, parsed, "forced")
}

func (s *Service) close(ctx context.Context, visitID id.VisitID, kind string) (*models.VisitRecord, error) {
	record, err := s.visits.CheckOut(ctx, visitID, requestcontext.Now(ctx))
	if err != nil {
		return nil, translateVisitErr(err)
	}
	if s.metrics != nil {
		s.metrics.IncrementCheckOuts(kind)
		if d, ok := record.Duration(); ok {
			s.metrics.ObserveVisitDuration(d)
		}
	}
	s.logger.InfoContext(ctx, "visitor checked out",
		"visit_id", record.ID,
		"kind", kind,
		"duration_minutes", record.DurationMinutes(),
	)
	return record, nil
}

// ListQuery narrows a visit listing. DateRange is one of "", "today",
// "yesterday", "week", "month".
type ListQuery struct {
	Status    models.VisitStatus
	HostID    string
	DateRange string
	Search    string
}

// ListVisits returns the filtered ledger, newest check-in first.
func (s *Service) ListVisits(ctx context.Context, query ListQuery) ([]*models.VisitRecord, error) {
	filter := models.ListFilter{
		Status: query.Status,
		Search: query.Search,
	}
	switch query.Status {
	case models.StatusAny, models.StatusActive, models.StatusCompleted:
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "status must be active or completed")
	}
	if query.HostID != "" {
		hostID, err := id.ParseHostID(query.HostID)
		if err != nil {
			return nil, err
		}
		filter.HostID = hostID
	}
	since, until, err := dateRangeBounds(query.DateRange, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	filter.Since = since
	filter.Until = until

	records, err := s.visits.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list visits")
	}
	return records, nil
}

// dateRangeBounds maps the named ranges onto [since, until) check-in bounds.
func dateRangeBounds(dateRange string, now time.Time) (time.Time, time.Time, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch dateRange {
	case "":
		return time.Time{}, time.Time{}, nil
	case "today":
		return dayStart, dayStart.Add(24 * time.Hour), nil
	case "yesterday":
		return dayStart.Add(-24 * time.Hour), dayStart, nil
	case "week":
		return dayStart.Add(-6 * 24 * time.Hour), dayStart.Add(24 * time.Hour), nil
	case "month":
		return dayStart.Add(-29 * 24 * time.Hour), dayStart.Add(24 * time.Hour), nil
	default:
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeInvalidInput,
			"date_range must be one of today, yesterday, week, month")
	}
}

// Stats produces the dashboard summary for the current day.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	now := requestcontext.Now(ctx)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	agg, err := s.visits.Aggregate(ctx, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate visits")
	}
	totalHosts, err := s.hosts.CountActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count hosts")
	}

	stats := &models.Stats{
		TotalVisitorsToday: agg.VisitorsToday,
		ActiveVisits:       agg.ActiveVisits,
		AvgDuration:        fmt.Sprintf("%dm", int(agg.AvgCompleted.Minutes())),
		PeakHour:           "-",
		TotalHosts:         totalHosts,
		BusiestHost:        "None",
	}
	if agg.PeakHour >= 0 {
		stats.PeakHour = fmt.Sprintf("%d:00", agg.PeakHour)
	}
	if agg.BusiestHost != "" {
		stats.BusiestHost = agg.BusiestHost
	}
	return stats, nil
}

func translateVisitErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "no active visit found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "visit store failure")
	}
}
