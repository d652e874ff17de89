package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

const pgUniqueViolation = "23505"

// PostgresStore implements SessionStore backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ SessionStore = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and applies the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	store := &PostgresStore{pool: pool, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// SetClock replaces the store's time source.
func (s *PostgresStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			query TEXT NOT NULL,
			workout_plan JSONB,
			meal_plan JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS api_usage (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			generator_tokens INTEGER NOT NULL DEFAULT 0,
			meal_calls INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_usage_user ON api_usage(user_id)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateSession inserts a new session.
func (s *PostgresStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO sessions (session_id, user_id, username, query, workout_plan, meal_plan, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.SessionID, session.UserID, session.Username, session.Query,
		nullableJSON(session.WorkoutPlan), nullableJSON(session.MealPlan),
		session.CreatedAt, session.ExpiresAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, session.SessionID)
	}
	return err
}

const pgSessionColumns = `session_id, user_id, username, query, workout_plan::text, meal_plan::text, created_at, expires_at`

func scanPGSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	var workout, meal *string
	if err := row.Scan(&session.SessionID, &session.UserID, &session.Username, &session.Query,
		&workout, &meal, &session.CreatedAt, &session.ExpiresAt); err != nil {
		return nil, err
	}
	if workout != nil {
		session.WorkoutPlan = json.RawMessage(*workout)
	}
	if meal != nil {
		session.MealPlan = json.RawMessage(*meal)
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	return &session, nil
}

// GetSession retrieves an unexpired session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM sessions WHERE session_id = $1 AND expires_at > $2`,
		sessionID, s.now())
	session, err := scanPGSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns a user's unexpired sessions, newest first.
func (s *PostgresStore) ListSessions(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgSessionColumns+` FROM sessions WHERE user_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC, session_id LIMIT $3`,
		userID, s.now(), normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		session, err := scanPGSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// PurgeExpired deletes sessions whose expiry is at or before now.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecordUsage appends a usage record.
func (s *PostgresStore) RecordUsage(ctx context.Context, usage domain.APIUsage) error {
	recordedAt := usage.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_usage (user_id, generator_tokens, meal_calls, recorded_at) VALUES ($1, $2, $3, $4)`,
		usage.UserID, usage.GeneratorTokens, usage.MealCalls, recordedAt)
	return err
}

// GetUsage sums a user's usage records.
func (s *PostgresStore) GetUsage(ctx context.Context, userID string) (*domain.UsageSummary, error) {
	summary := &domain.UsageSummary{UserID: userID}
	err := s.pool.QueryRow(ctx, `
SELECT COUNT(*), COALESCE(SUM(generator_tokens), 0), COALESCE(SUM(meal_calls), 0)
FROM api_usage WHERE user_id = $1`, userID).Scan(&summary.Requests, &summary.GeneratorTokens, &summary.MealCalls)
	if err != nil {
		return nil, err
	}
	return summary, nil
}
