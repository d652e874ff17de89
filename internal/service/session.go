package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

const (
	purgeInterval = time.Hour
	purgeTimeout  = 10 * time.Second
)

const storageUnavailableMessage = "Session storage is currently unavailable"

var errNoStore = errors.New("session store not configured")

func storageUnavailable(err error) *domain.CodedError {
	return domain.NewCodedError(domain.CodeStorageUnavailable, storageUnavailableMessage, err)
}

// UserSessions is a user's recent sessions plus usage totals.
type UserSessions struct {
	UserID   string               `json:"userId"`
	Sessions []domain.Session     `json:"sessions"`
	Count    int                  `json:"count"`
	Usage    *domain.UsageSummary `json:"usage,omitempty"`
}

// GetSession returns a stored, unexpired session. Store failures are
// STORAGE_UNAVAILABLE errors.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if s.store == nil {
		return nil, storageUnavailable(errNoStore)
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return nil, storageUnavailable(fmt.Errorf("failed to get session: %w", err))
	}
	return session, nil
}

// ListUserSessions returns up to limit of a user's sessions, newest first. Usage
// totals are attached when available.
func (s *Service) ListUserSessions(ctx context.Context, userID string, limit int) (*UserSessions, error) {
	if s.store == nil {
		return nil, storageUnavailable(errNoStore)
	}
	sessions, err := s.store.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, storageUnavailable(fmt.Errorf("failed to list sessions: %w", err))
	}

	out := &UserSessions{UserID: userID, Sessions: sessions, Count: len(sessions)}
	usage, err := s.store.GetUsage(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load usage")
	} else {
		out.Usage = usage
	}
	return out, nil
}

// RunSessionJanitor purges expired sessions until ctx is done.
func (s *Service) RunSessionJanitor(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeExpiredSessions(ctx)
		}
	}
}

func (s *Service) purgeExpiredSessions(ctx context.Context) int64 {
	if s.store == nil {
		return 0
	}
	purgeCtx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := s.store.PurgeExpired(purgeCtx, s.now())
	if err != nil {
		s.logger.Warn().Err(err).Msg("session purge failed")
		return 0
	}
	if n > 0 {
		s.logger.Info().Int64("purged", n).Msg("expired sessions purged")
	}
	return n
}
