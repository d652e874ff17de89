// Package repository persists coaching sessions and usage counters.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

// ListSessions limits: DefaultListLimit applies when no limit is given and
// larger requests are capped at MaxListLimit.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// SessionStore defines session and usage persistence.
type SessionStore interface {
	// CreateSession inserts a session. An existing session id is rejected with
	// domain.ErrDuplicateSession and left untouched.
	CreateSession(ctx context.Context, session *domain.Session) error
	// GetSession returns an unexpired session or domain.ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	// ListSessions returns a user's unexpired sessions, newest first.
	ListSessions(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	// PurgeExpired deletes sessions that expired before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	RecordUsage(ctx context.Context, usage domain.APIUsage) error
	GetUsage(ctx context.Context, userID string) (*domain.UsageSummary, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open selects a store by DSN: postgres:// and postgresql:// URLs use
// Postgres, anything else is a SQLite DSN.
func Open(ctx context.Context, dsn string) (SessionStore, error) {
	if IsPostgresDSN(dsn) {
		return NewPostgresStore(ctx, dsn)
	}
	return NewSQLiteStore(dsn)
}

// IsPostgresDSN reports whether dsn names a Postgres database.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
