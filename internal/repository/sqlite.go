package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

// SQLiteStore implements SessionStore using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ SessionStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// SetClock replaces the store's time source.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			query TEXT NOT NULL,
			workout_plan TEXT,
			meal_plan TEXT,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS api_usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			generator_tokens INTEGER NOT NULL DEFAULT 0,
			meal_calls INTEGER NOT NULL DEFAULT 0,
			recorded_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_usage_user ON api_usage(user_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession inserts a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, username, query, workout_plan, meal_plan, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, session.Username, session.Query,
		nullableJSON(session.WorkoutPlan), nullableJSON(session.MealPlan),
		session.CreatedAt.UnixMilli(), session.ExpiresAt.UnixMilli())
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, session.SessionID)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var workout, meal sql.NullString
	var createdAt, expiresAt int64
	if err := row.Scan(&session.SessionID, &session.UserID, &session.Username, &session.Query,
		&workout, &meal, &createdAt, &expiresAt); err != nil {
		return nil, err
	}
	if workout.Valid {
		session.WorkoutPlan = json.RawMessage(workout.String)
	}
	if meal.Valid {
		session.MealPlan = json.RawMessage(meal.String)
	}
	session.CreatedAt = time.UnixMilli(createdAt).UTC()
	session.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &session, nil
}

const sessionColumns = `session_id, user_id, username, query, workout_plan, meal_plan, created_at, expires_at`

// GetSession retrieves an unexpired session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ? AND expires_at > ?`,
		sessionID, s.now().UnixMilli())
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions returns a user's unexpired sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? AND expires_at > ?
		 ORDER BY created_at DESC, session_id LIMIT ?`,
		userID, s.now().UnixMilli(), normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// PurgeExpired deletes sessions whose expiry is at or before now.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RecordUsage appends a usage record.
func (s *SQLiteStore) RecordUsage(ctx context.Context, usage domain.APIUsage) error {
	recordedAt := usage.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_usage (user_id, generator_tokens, meal_calls, recorded_at) VALUES (?, ?, ?, ?)`,
		usage.UserID, usage.GeneratorTokens, usage.MealCalls, recordedAt.UnixMilli())
	return err
}

// GetUsage sums a user's usage records.
func (s *SQLiteStore) GetUsage(ctx context.Context, userID string) (*domain.UsageSummary, error) {
	summary := &domain.UsageSummary{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(generator_tokens), 0), COALESCE(SUM(meal_calls), 0)
		 FROM api_usage WHERE user_id = ?`,
		userID).Scan(&summary.Requests, &summary.GeneratorTokens, &summary.MealCalls)
	if err != nil {
		return nil, err
	}
	return summary, nil
}
