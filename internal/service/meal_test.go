package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/optimizer"
	"github.com/xiaot623/gogo/coach/internal/repository"
	"github.com/xiaot623/gogo/coach/tests/helpers"
)

func TestMealPlanFromQuery(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	ctx := context.Background()

	data, err := svc.MealPlan(ctx, domain.GeneratorRequest{
		Username: "alice",
		UserID:   "user-1",
		Query:    "vegetarian plan to build muscle, around 2600 calories",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"vegetarian"}, data.Metadata.DietaryPreferences)
	assert.Equal(t, "muscle_gain", data.Metadata.FitnessGoal)
	assert.Equal(t, 2600, data.Metadata.CalorieTarget)
	assert.Equal(t, 7, data.Metadata.Days)
	assert.False(t, data.Metadata.Cached)
	assert.Len(t, data.MealPlan.Days, 7)
	assert.Equal(t, data.MealPlan.Score, data.NutritionAnalysis.BalanceScore)

	again, err := svc.MealPlan(ctx, domain.GeneratorRequest{Query: "vegetarian plan to build muscle, around 2600 calories"})
	require.NoError(t, err)
	assert.True(t, again.Metadata.Cached)
	assert.Equal(t, data.Metadata.CacheKey, again.Metadata.CacheKey)
}

func TestMealPlanRequiresQuery(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	_, err := svc.MealPlan(context.Background(), domain.GeneratorRequest{Query: "  "})
	assert.ErrorIs(t, err, optimizer.ErrInvalidRequest)
}

func TestCacheStatsAndClear(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.MealPlan(ctx, domain.GeneratorRequest{Query: "keto meals to lose weight please"})
	require.NoError(t, err)
	_, err = svc.SuggestRecipes(ctx, 300, 500, nil, "")
	require.NoError(t, err)

	assert.Equal(t, 2, svc.CacheStats().Total)
	assert.Equal(t, 1, svc.ClearCache(optimizer.PrefixSuggestions))
	assert.Equal(t, 1, svc.ClearCache(""))
	assert.Equal(t, 0, svc.CacheStats().Total)
}

func TestOptimizeMealRejectsBadTarget(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	_, err := svc.OptimizeMeal(context.Background(), domain.Recipe{Calories: 400}, "maintenance", 0)
	assert.ErrorIs(t, err, optimizer.ErrInvalidRequest)
}

func TestSessionsAndUsage(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	svc := newTestService(t, store, succeeding(domain.ServiceWorkout, `{}`), succeeding(domain.ServiceMeal, `{}`))

	_, err := svc.Coach(ctx, validRequest())
	require.NoError(t, err)

	session, err := svc.GetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)

	_, err = svc.GetSession(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	list, err := svc.ListUserSessions(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
	require.NotNil(t, list.Usage)
	assert.Equal(t, 1, list.Usage.Requests)
}

func TestPurgeExpiredSessions(t *testing.T) {
	ctx := context.Background()
	store := helpers.NewTestSQLiteStore(t)
	svc := newTestService(t, store, succeeding(domain.ServiceWorkout, `{}`), succeeding(domain.ServiceMeal, `{}`))

	_, err := svc.Coach(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(0), svc.purgeExpiredSessions(ctx))

	later := time.Now().Add(domain.SessionTTL + time.Minute)
	svc.now = func() time.Time { return later }
	assert.Equal(t, int64(1), svc.purgeExpiredSessions(ctx))
}

func TestHealth(t *testing.T) {
	store := helpers.NewTestSQLiteStore(t)
	meal := succeeding(domain.ServiceMeal, `{}`)
	svc := newTestService(t, store, succeeding(domain.ServiceWorkout, `{}`), meal)

	report := svc.Health(context.Background())
	assert.True(t, report.Healthy())
	assert.Len(t, report.Checks, 3)

	meal.pingErr = errors.New("connection refused")
	report = svc.Health(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusUnhealthy, report.Checks["meal_generator"].Status)
	assert.Equal(t, StatusHealthy, report.Checks["database"].Status)
}

func TestHealthWithoutStore(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	report := svc.Health(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Len(t, report.Checks, 1)
}

// brokenStore fails every session read.
type brokenStore struct {
	repository.SessionStore
}

func (brokenStore) GetSession(context.Context, string) (*domain.Session, error) {
	return nil, errors.New("disk I/O error")
}

func (brokenStore) ListSessions(context.Context, string, int) ([]domain.Session, error) {
	return nil, errors.New("disk I/O error")
}

func TestSessionReadsReportStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	stores := map[string]repository.SessionStore{
		"no store":      nil,
		"failing store": brokenStore{SessionStore: helpers.NewTestSQLiteStore(t)},
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, store, nil, nil)

			_, err := svc.GetSession(ctx, "session-1")
			var coded *domain.CodedError
			require.ErrorAs(t, err, &coded)
			assert.Equal(t, domain.CodeStorageUnavailable, coded.Code)
			assert.Equal(t, http.StatusServiceUnavailable, coded.Status)
			assert.False(t, errors.Is(err, domain.ErrNotFound))

			_, err = svc.ListUserSessions(ctx, "user-1", 0)
			require.ErrorAs(t, err, &coded)
			assert.Equal(t, domain.CodeStorageUnavailable, coded.Code)
		})
	}
}
