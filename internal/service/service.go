// Package service implements the coach orchestration: validation, the
// workout/meal fan-out, merging and best-effort persistence.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coach/internal/config"
	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/metrics"
	"github.com/xiaot623/gogo/coach/internal/optimizer"
	"github.com/xiaot623/gogo/coach/internal/repository"
	"github.com/xiaot623/gogo/coach/internal/retry"
	"github.com/xiaot623/gogo/coach/policy"
)

// Generator produces one half of a coaching plan.
type Generator interface {
	Service() domain.ServiceID
	Run(ctx context.Context, req domain.GeneratorRequest, cfg retry.Config, logger zerolog.Logger) domain.GenerationOutcome
	Ping(ctx context.Context) error
}

type Service struct {
	store      repository.SessionStore
	workout    Generator
	meal       Generator
	optimizer  *optimizer.Optimizer
	config     *config.Config
	classifier policy.Classifier
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() string
}

func New(store repository.SessionStore, workout, meal Generator, opt *optimizer.Optimizer, cfg *config.Config, classifier policy.Classifier, logger zerolog.Logger, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		store:      store,
		workout:    workout,
		meal:       meal,
		optimizer:  opt,
		config:     cfg,
		classifier: classifier,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
		newID:      newSessionID,
	}
}

// Optimizer returns the meal optimizer.
func (s *Service) Optimizer() *optimizer.Optimizer {
	return s.optimizer
}
