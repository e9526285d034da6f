package visit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"gatepass/internal/visit/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore persists visits in PostgreSQL. The open-record-per-subject
// invariant rides on the partial unique index over fayda_id WHERE
// checkout_at IS NULL, so check-in is a single atomic INSERT.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed visit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const visitColumns = "id, fayda_id, name, photo_url, host_id, host_name, reason, checkin_at, checkout_at, extra"

func (s *PostgresStore) CreateIfNoActive(ctx context.Context, record *models.VisitRecord) error {
	extra, err := json.Marshal(record.Extra)
	if err != nil {
		return fmt.Errorf("marshal visit extra: %w", err)
	}
	if record.Extra == nil {
		extra = []byte("{}")
	}

	query := `
		INSERT INTO visits (id, fayda_id, name, photo_url, host_id, host_name, reason, checkin_at, checkout_at, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID.String(),
		string(record.FaydaID),
		record.Name,
		record.PhotoURL,
		record.HostID.String(),
		record.HostName,
		record.Reason,
		record.CheckinAt,
		extra,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("subject already has an open visit: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create visit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindActiveByFayda(ctx context.Context, faydaID id.FaydaID) (*models.VisitRecord, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE fayda_id = $1 AND checkout_at IS NULL`
	record, err := scanVisit(s.db.QueryRowContext(ctx, query, string(faydaID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active visit found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find active visit: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FindActiveByID(ctx context.Context, visitID id.VisitID) (*models.VisitRecord, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1 AND checkout_at IS NULL`
	record, err := scanVisit(s.db.QueryRowContext(ctx, query, visitID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active visit found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find active visit: %w", err)
	}
	return record, nil
}

// CheckOut closes the open visit in one conditional UPDATE. The WHERE clause
// makes the transition one-way: an already-closed visit matches no row and
// reports not found, and CheckoutAt is never rewritten.
func (s *PostgresStore) CheckOut(ctx context.Context, visitID id.VisitID, now time.Time) (*models.VisitRecord, error) {
	query := `
		UPDATE visits
		SET checkout_at = $2
		WHERE id = $1 AND checkout_at IS NULL
		RETURNING ` + visitColumns
	record, err := scanVisit(s.db.QueryRowContext(ctx, query, visitID.String(), now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no active visit found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("check out visit: %w", err)
	}
	return record, nil
}

// List returns the filtered ledger, newest check-in first.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.VisitRecord, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	switch filter.Status {
	case models.StatusActive:
		conds = append(conds, "checkout_at IS NULL")
	case models.StatusCompleted:
		conds = append(conds, "checkout_at IS NOT NULL")
	}
	if !filter.HostID.IsZero() {
		conds = append(conds, "host_id = "+arg(filter.HostID.String()))
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "checkin_at >= "+arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "checkin_at < "+arg(filter.Until))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conds = append(conds, "(name ILIKE "+arg(pattern)+" OR fayda_id ILIKE "+arg(pattern)+" OR host_name ILIKE "+arg(pattern)+")")
	}

	query := `SELECT ` + visitColumns + ` FROM visits`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY checkin_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []*models.VisitRecord
	for rows.Next() {
		record, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visits: %w", err)
	}
	return out, nil
}

// Aggregate computes the dashboard numbers for check-ins in [from, until).
func (s *PostgresStore) Aggregate(ctx context.Context, from, until time.Time) (*models.Aggregates, error) {
	agg := &models.Aggregates{PeakHour: -1}

	summary := `
		SELECT
			COUNT(*) FILTER (WHERE checkin_at >= $1 AND checkin_at < $2),
			COUNT(*) FILTER (WHERE checkout_at IS NULL),
			COUNT(*) FILTER (WHERE checkin_at >= $1 AND checkin_at < $2 AND checkout_at IS NOT NULL),
			COALESCE(EXTRACT(EPOCH FROM AVG(checkout_at - checkin_at) FILTER (WHERE checkin_at >= $1 AND checkin_at < $2 AND checkout_at IS NOT NULL)), 0)
		FROM visits
	`
	var avgSeconds float64
	if err := s.db.QueryRowContext(ctx, summary, from, until).Scan(
		&agg.VisitorsToday,
		&agg.ActiveVisits,
		&agg.CompletedToday,
		&avgSeconds,
	); err != nil {
		return nil, fmt.Errorf("aggregate visits: %w", err)
	}
	agg.AvgCompleted = time.Duration(avgSeconds * float64(time.Second))

	peak := `
		SELECT EXTRACT(hour FROM checkin_at)::int AS hour, COUNT(*) AS n
		FROM visits
		WHERE checkin_at >= $1 AND checkin_at < $2
		GROUP BY hour
		ORDER BY n DESC, hour ASC
		LIMIT 1
	`
	var hour, n int
	err := s.db.QueryRowContext(ctx, peak, from, until).Scan(&hour, &n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("aggregate peak hour: %w", err)
	}
	if err == nil {
		agg.PeakHour = hour
	}

	busiest := `
		SELECT host_name, COUNT(*) AS n
		FROM visits
		WHERE checkin_at >= $1 AND checkin_at < $2
		GROUP BY host_name
		ORDER BY n DESC, host_name ASC
		LIMIT 1
	`
	var hostName string
	err = s.db.QueryRowContext(ctx, busiest, from, until).Scan(&hostName, &n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("aggregate busiest host: %w", err)
	}
	if err == nil {
		agg.BusiestHost = hostName
		agg.BusiestHostCount = n
	}
	return agg, nil
}

type visitRow interface {
	Scan(dest ...any) error
}

func scanVisit(row visitRow) (*models.VisitRecord, error) {
	var record models.VisitRecord
	var rawVisitID, rawFaydaID, rawHostID string
	var checkoutAt sql.NullTime
	var extra []byte
	if err := row.Scan(
		&rawVisitID,
		&rawFaydaID,
		&record.Name,
		&record.PhotoURL,
		&rawHostID,
		&record.HostName,
		&record.Reason,
		&record.CheckinAt,
		&checkoutAt,
		&extra,
	); err != nil {
		return nil, err
	}

	visitID, err := id.ParseVisitID(rawVisitID)
	if err != nil {
		return nil, fmt.Errorf("stored visit id is invalid: %w", err)
	}
	hostID, err := id.ParseHostID(rawHostID)
	if err != nil {
		return nil, fmt.Errorf("stored host id is invalid: %w", err)
	}
	record.ID = visitID
	record.HostID = hostID
	record.FaydaID = id.FaydaID(rawFaydaID)
	if checkoutAt.Valid {
		at := checkoutAt.Time
		record.CheckoutAt = &at
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &record.Extra); err != nil {
			return nil, fmt.Errorf("decode visit extra: %w", err)
		}
		if len(record.Extra) == 0 {
			record.Extra = nil
		}
	}
	return &record, nil
}
