package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gatepass/internal/oidc/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore persists handshake sessions in PostgreSQL.
// This store is pure I/O—expiry rules live in the model and service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, session *models.AuthSession) error {
	query := `
		INSERT INTO auth_sessions (state, fayda_id, code_verifier, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		session.State,
		string(session.FaydaID),
		session.CodeVerifier,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("session state already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create auth session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Resolve(ctx context.Context, state string, now time.Time) (*models.AuthSession, error) {
	query := `
		SELECT state, fayda_id, code_verifier, created_at, expires_at
		FROM auth_sessions
		WHERE state = $1
	`
	var session models.AuthSession
	var faydaID string
	err := s.db.QueryRowContext(ctx, query, state).Scan(
		&session.State,
		&faydaID,
		&session.CodeVerifier,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auth session not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve auth session: %w", err)
	}

	session.FaydaID = id.FaydaID(faydaID)
	if session.IsExpired(now) {
		return nil, fmt.Errorf("auth session expired: %w", sentinel.ErrExpired)
	}
	return &session, nil
}

func (s *PostgresStore) Consume(ctx context.Context, state string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE state = $1`, state); err != nil {
		return fmt.Errorf("consume auth session: %w", err)
	}
	return nil
}

// SweepExpired deletes all sessions past their expiry and reports the count.
func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired auth sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep expired rows affected: %w", err)
	}
	return int(rows), nil
}
