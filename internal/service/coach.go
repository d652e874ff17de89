package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/logging"
	"github.com/xiaot623/gogo/coach/internal/retry"
	"github.com/xiaot623/gogo/coach/internal/validation"
)

const (
	validationMessage = "Request validation failed"
	allFailedMessage  = "Both workout and meal plan generation services are currently unavailable. Please try again in a few minutes."
	criticalMessage   = "A critical error occurred during plan generation. Please try again."

	defaultStorageTimeout = 5 * time.Second
)

func newSessionID() string {
	return uuid.New().String()
}

func logState(logger zerolog.Logger, state domain.RunState) {
	logger.Debug().Str("state", string(state)).Msg("coach run advanced")
}

// Coach validates req, runs both generators concurrently and merges their
// outcomes. A partial result is a success; only a double failure is an error.
// The session is persisted best-effort and never fails the request.
func (s *Service) Coach(ctx context.Context, req domain.CoachRequest) (result *domain.OrchestrationResult, err error) {
	logger := logging.FromContext(ctx, s.logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("coach run panicked")
			result = nil
			err = domain.NewCodedError(domain.CodeCriticalGeneration, criticalMessage, fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			var coded *domain.CodedError
			if errors.As(err, &coded) {
				s.metrics.ObserveRequest(string(coded.Code))
			} else {
				s.metrics.ObserveRequest(string(domain.CodeInternal))
			}
		}
		logState(logger, domain.RunStateResponded)
	}()

	logState(logger, domain.RunStateReceived)

	clean, err := validation.Validate(req)
	if err != nil {
		return nil, domain.NewCodedError(domain.CodeValidation, validationMessage, err)
	}
	logState(logger, domain.RunStateValidated)

	sessionID := s.newID()
	logger = logger.With().Str("session_id", sessionID).Logger()
	result = &domain.OrchestrationResult{
		Profile: domain.UserProfile{
			Username:  clean.Username,
			UserID:    clean.UserID,
			SessionID: sessionID,
			Query:     clean.Query,
			Timestamp: s.now().UTC(),
		},
		SessionID: sessionID,
	}

	logState(logger, domain.RunStateGenerating)
	workout, meal, err := s.generate(ctx, domain.NewGeneratorRequest(clean), logger)
	if err != nil {
		return nil, err
	}
	result.Workout = &workout
	result.Meal = &meal
	logState(logger, domain.RunStateMerged)

	switch {
	case !result.WorkoutGenerated() && !result.MealPlanGenerated():
		logger.Error().
			Str("workout_error", string(workout.ErrorCode)).
			Str("meal_error", string(meal.ErrorCode)).
			Msg("all generation services failed")
		return nil, domain.NewCodedError(domain.CodeAllServicesFailed, allFailedMessage,
			fmt.Errorf("%w: workout: %s; meal: %s", domain.ErrAllServicesFailed, workout.Message, meal.Message))
	case !result.WorkoutGenerated():
		logger.Warn().Str("error_code", string(workout.ErrorCode)).Msg("only meal plan generated")
	case !result.MealPlanGenerated():
		logger.Warn().Str("error_code", string(meal.ErrorCode)).Msg("only workout plan generated")
	}

	result.Persisted = s.persist(result, logger)
	if result.Persisted {
		logState(logger, domain.RunStatePersisted)
	}

	if result.Partial() {
		s.metrics.ObserveRequest("partial")
	} else {
		s.metrics.ObserveRequest("complete")
	}
	return result, nil
}

// generate runs both generators under the request deadline. Each goroutine
// only writes its own outcome.
func (s *Service) generate(ctx context.Context, req domain.GeneratorRequest, logger zerolog.Logger) (workout, meal domain.GenerationOutcome, err error) {
	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	var g errgroup.Group
	g.Go(func() error {
		return s.runGenerator(ctx, s.workout, req, logger, &workout)
	})
	g.Go(func() error {
		return s.runGenerator(ctx, s.meal, req, logger, &meal)
	})
	if err := g.Wait(); err != nil {
		return workout, meal, err
	}
	return workout, meal, nil
}

func (s *Service) runGenerator(ctx context.Context, gen Generator, req domain.GeneratorRequest, logger zerolog.Logger, out *domain.GenerationOutcome) (err error) {
	service := gen.Service()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("service", string(service)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("generator panicked")
			err = domain.NewCodedError(domain.CodeCriticalGeneration, criticalMessage,
				fmt.Errorf("%s generator panic: %v", service, r))
		}
	}()

	logger = logger.With().Str("service", string(service)).Logger()
	start := time.Now()
	outcome := gen.Run(ctx, req, s.config.RetryFor(service), logger)
	s.metrics.ObserveGeneration(outcome, time.Since(start))

	if outcome.Success {
		logger.Info().Int("attempts", outcome.Attempts).Msg("plan generated")
	} else {
		logger.Error().
			Str("error_code", string(outcome.ErrorCode)).
			Int("attempts", outcome.Attempts).
			Str("error", outcome.Message).
			Msg("plan generation failed")
	}
	*out = outcome
	return nil
}

// persist stores the session through the storage retry policy on its own
// deadline. It reports whether the session was stored.
func (s *Service) persist(result *domain.OrchestrationResult, logger zerolog.Logger) bool {
	if s.store == nil {
		logger.Warn().Msg("no session store configured, skipping persistence")
		s.metrics.ObservePersist(false)
		return false
	}

	timeout := s.config.StorageTimeout
	if timeout <= 0 {
		timeout = defaultStorageTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	createdAt := s.now().UTC()
	session := &domain.Session{
		SessionID:   result.SessionID,
		UserID:      result.Profile.UserID,
		Username:    result.Profile.Username,
		Query:       result.Profile.Query,
		WorkoutPlan: result.WorkoutPlan(),
		MealPlan:    result.MealPlan(),
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(domain.SessionTTL),
	}

	_, err := retry.Do(ctx, string(domain.ServiceStorage), s.config.RetryFor(domain.ServiceStorage), logger,
		func(ctx context.Context, attempt int) error {
			return s.classifyStorage(ctx, s.store.CreateSession(ctx, session))
		})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to store session")
		s.metrics.ObservePersist(false)
		return false
	}
	s.metrics.ObservePersist(true)

	s.recordUsage(ctx, result, logger)
	return true
}

// classifyStorage marks transient storage errors as retryable.
func (s *Service) classifyStorage(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, domain.ErrDuplicateSession) || s.classifier == nil {
		return err
	}
	ok, cerr := s.classifier.IsRetryable(ctx, domain.ServiceStorage, 0, err.Error())
	if cerr != nil {
		s.logger.Warn().Err(cerr).Msg("storage error classification failed")
		return err
	}
	if ok {
		return retry.Retryable(err)
	}
	return err
}

func (s *Service) recordUsage(ctx context.Context, result *domain.OrchestrationResult, logger zerolog.Logger) {
	usage := domain.APIUsage{UserID: result.Profile.UserID, RecordedAt: s.now().UTC()}
	if result.WorkoutGenerated() {
		usage.GeneratorTokens = len(result.Profile.Query) / 4
	}
	if result.MealPlanGenerated() {
		usage.MealCalls = 1
	}
	if err := s.store.RecordUsage(ctx, usage); err != nil {
		logger.Warn().Err(err).Msg("failed to record usage")
	}
}
