package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/gogo/coach/internal/adapter/generator"
	"github.com/xiaot623/gogo/coach/internal/cache"
	"github.com/xiaot623/gogo/coach/internal/config"
	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/logging"
	"github.com/xiaot623/gogo/coach/internal/metrics"
	"github.com/xiaot623/gogo/coach/internal/optimizer"
	"github.com/xiaot623/gogo/coach/internal/repository"
	"github.com/xiaot623/gogo/coach/internal/service"
	handler "github.com/xiaot623/gogo/coach/internal/transport/http"
	"github.com/xiaot623/gogo/coach/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)

	logger.Info().
		Int("port", cfg.HTTPPort).
		Str("env", cfg.Env).
		Str("workout_url", cfg.WorkoutURL).
		Str("meal_url", cfg.MealURL).
		Bool("postgres", repository.IsPostgresDSN(cfg.DatabaseURL)).
		Msg("starting coach service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer db.Close()

	// Initialize retry classifier
	classifier, err := policy.NewEngine(ctx, policy.DefaultPolicy, cfg.RetryablePatterns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize policy engine")
	}

	m := metrics.New()

	// Initialize generator clients
	workout := generator.NewClient(domain.ServiceWorkout, cfg.WorkoutURL, cfg.GeneratorTimeout, classifier)
	meal := generator.NewClient(domain.ServiceMeal, cfg.MealURL, cfg.GeneratorTimeout, classifier)

	// Initialize meal optimizer
	opt := optimizer.New(optimizer.DefaultCatalog(), cache.New(),
		optimizer.WithTTLs(cfg.MealPlanCacheTTL, cfg.SuggestionCacheTTL),
		optimizer.WithObserver(m),
		optimizer.WithLogger(logger.With().Str("component", "optimizer").Logger()),
	)

	// Initialize service
	svc := service.New(db, workout, meal, opt, cfg, classifier, logger, m)
	go svc.RunSessionJanitor(ctx)

	server := handler.NewServer(svc, cfg, logger, m)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	logger.Info().Int("port", cfg.HTTPPort).Msg("coach API started")

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info().Msg("shutting down coach service")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server gracefully")
	}

	logger.Info().Msg("coach service stopped")
}
