package host

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"gatepass/internal/host/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore persists hosts in PostgreSQL.
// This store is pure I/O—lifecycle rules live in the model.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed host store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const hostColumns = "id, name, department, active, created_at, updated_at"

func (s *PostgresStore) Create(ctx context.Context, host *models.Host) error {
	query := `
		INSERT INTO hosts (id, name, department, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		host.ID.String(),
		host.Name,
		host.Department,
		host.Active,
		host.CreatedAt,
		host.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("host already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create host: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, hostID id.HostID) (*models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE id = $1`
	host, err := scanHost(s.db.QueryRowContext(ctx, query, hostID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("host not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find host: %w", err)
	}
	return host, nil
}

func (s *PostgresStore) List(ctx context.Context, activeOnly bool) ([]*models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []*models.Host
	for rows.Next() {
		host, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hosts: %w", err)
	}
	return hosts, nil
}

func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hosts WHERE active`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active hosts: %w", err)
	}
	return count, nil
}

// Execute atomically validates and mutates a host under a row lock.
func (s *PostgresStore) Execute(ctx context.Context, hostID id.HostID, validate func(*models.Host) error, mutate func(*models.Host)) (*models.Host, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin host update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + hostColumns + ` FROM hosts WHERE id = $1 FOR UPDATE`
	host, err := scanHost(tx.QueryRowContext(ctx, query, hostID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("host not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock host: %w", err)
	}

	if err := validate(host); err != nil {
		return host, err
	}
	mutate(host)

	update := `
		UPDATE hosts
		SET name = $2, department = $3, active = $4, updated_at = $5
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		host.ID.String(),
		host.Name,
		host.Department,
		host.Active,
		host.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update host: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit host update: %w", err)
	}
	return host, nil
}

type hostRow interface {
	Scan(dest ...any) error
}

func scanHost(row hostRow) (*models.Host, error) {
	var host models.Host
	var rawID string
	if err := row.Scan(&rawID, &host.Name, &host.Department, &host.Active, &host.CreatedAt, &host.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.ParseHostID(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored host id is invalid: %w", err)
	}
	host.ID = parsed
	return &host, nil
}
