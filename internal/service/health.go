package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	healthTimeout = 3 * time.Second
)

// Check is the result of one dependency probe.
type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthReport summarizes the service and its dependencies.
type HealthReport struct {
	Service   string           `json:"service"`
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
}

// Healthy reports whether every dependency answered.
func (h *HealthReport) Healthy() bool {
	return h.Status == StatusHealthy
}

// Health probes the database and both generators concurrently. Any failing
// probe degrades the report.
func (s *Service) Health(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	probes := map[string]func(context.Context) error{
		"database": func(ctx context.Context) error {
			if s.store == nil {
				return errNoStore
			}
			return s.store.Ping(ctx)
		},
	}
	if s.workout != nil {
		probes["workout_generator"] = s.workout.Ping
	}
	if s.meal != nil {
		probes["meal_generator"] = s.meal.Ping
	}

	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	results := make([]Check, len(names))

	var g errgroup.Group
	for i, name := range names {
		probe := probes[name]
		g.Go(func() error {
			results[i] = Check{Status: StatusHealthy}
			if err := probe(ctx); err != nil {
				results[i] = Check{Status: StatusUnhealthy, Error: err.Error()}
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &HealthReport{
		Service:   "fitness-coach-api",
		Status:    StatusHealthy,
		Timestamp: s.now().UTC(),
		Checks:    make(map[string]Check, len(names)),
	}
	for i, name := range names {
		report.Checks[name] = results[i]
		if results[i].Status != StatusHealthy {
			report.Status = StatusDegraded
			s.logger.Warn().Str("check", name).Str("error", results[i].Error).Msg("health check failed")
		}
	}
	return report
}
