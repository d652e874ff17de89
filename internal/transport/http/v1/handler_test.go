package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/coach/internal/cache"
	"github.com/xiaot623/gogo/coach/internal/config"
	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/metrics"
	"github.com/xiaot623/gogo/coach/internal/optimizer"
	"github.com/xiaot623/gogo/coach/internal/repository"
	"github.com/xiaot623/gogo/coach/internal/retry"
	"github.com/xiaot623/gogo/coach/internal/service"
	"github.com/xiaot623/gogo/coach/policy"
	"github.com/xiaot623/gogo/coach/tests/helpers"
)

type stubGenerator struct {
	outcome domain.GenerationOutcome
}

func (s stubGenerator) Service() domain.ServiceID { return s.outcome.Service }

func (s stubGenerator) Run(context.Context, domain.GeneratorRequest, retry.Config, zerolog.Logger) domain.GenerationOutcome {
	return s.outcome
}

func (s stubGenerator) Ping(context.Context) error { return nil }

func ok(service domain.ServiceID, payload string) stubGenerator {
	return stubGenerator{outcome: domain.Succeeded(service, json.RawMessage(payload), 1)}
}

func down(service domain.ServiceID) stubGenerator {
	return stubGenerator{outcome: domain.Failed(service, domain.UnavailableCode(service), "unavailable", 3)}
}

func newTestHandler(t *testing.T, workout, meal service.Generator) (*Handler, repository.SessionStore) {
	t.Helper()
	cfg := &config.Config{
		RequestTimeout:  time.Second,
		StorageTimeout:  time.Second,
		DefaultPlanDays: 7,
		Retry:           config.DefaultRetry(),
	}
	db := helpers.NewTestSQLiteStore(t)
	classifier, err := policy.NewPatternClassifier(config.DefaultRetryablePatterns())
	require.NoError(t, err)
	opt := optimizer.New(optimizer.DefaultCatalog(), cache.New())
	svc := service.New(db, workout, meal, opt, cfg, classifier, zerolog.Nop(), metrics.New())
	return NewHandler(svc, zerolog.Nop()), db
}

func call(t *testing.T, handler echo.HandlerFunc, method, target, body string, params ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}

	require.NoError(t, handler(c))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

const coachBody = `{"username":"alice","userId":"user-1","query":"Help me build muscle with vegetarian meals"}`

func TestCoachSuccessEnvelope(t *testing.T) {
	h, _ := newTestHandler(t, ok(domain.ServiceWorkout, `{"workoutPlan":{"days":3}}`), ok(domain.ServiceMeal, `{"meal_plan":{}}`))

	rec, out := call(t, h.Coach, http.MethodPost, "/v1/fitness-coach", coachBody)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "req-1", out["requestId"])
	assert.Nil(t, out["error"])
	assert.NotEmpty(t, out["timestamp"])

	data := out["data"].(map[string]interface{})
	assert.Equal(t, coachSuccessMessage, data["message"])
	profile := data["userProfile"].(map[string]interface{})
	assert.Equal(t, "alice", profile["username"])
	assert.NotEmpty(t, profile["sessionId"])

	meta := data["metadata"].(map[string]interface{})
	assert.Equal(t, true, meta["workoutGenerated"])
	assert.Equal(t, true, meta["mealPlanGenerated"])
	assert.Equal(t, true, meta["sessionStored"])
}

func TestCoachPartialEnvelope(t *testing.T) {
	h, _ := newTestHandler(t, ok(domain.ServiceWorkout, `{"workoutPlan":{}}`), down(domain.ServiceMeal))

	rec, out := call(t, h.Coach, http.MethodPost, "/v1/fitness-coach", coachBody)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := out["data"].(map[string]interface{})
	assert.Nil(t, data["mealPlan"])
	meta := data["metadata"].(map[string]interface{})
	assert.Equal(t, false, meta["mealPlanGenerated"])
	assert.Equal(t, float64(3), meta["mealAttempts"])
}

func TestCoachAllServicesFailed(t *testing.T) {
	h, _ := newTestHandler(t, down(domain.ServiceWorkout), down(domain.ServiceMeal))

	rec, out := call(t, h.Coach, http.MethodPost, "/v1/fitness-coach", coachBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Nil(t, out["data"])
	errBody := out["error"].(map[string]interface{})
	assert.Equal(t, "ALL_SERVICES_FAILED", errBody["code"])
}

func TestCoachInvalidBodies(t *testing.T) {
	h, _ := newTestHandler(t, ok(domain.ServiceWorkout, `{}`), ok(domain.ServiceMeal, `{}`))

	for name, body := range map[string]string{
		"empty":      "",
		"blank":      "   ",
		"not json":   "{username:",
		"not object": `["a"]`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, out := call(t, h.Coach, http.MethodPost, "/v1/fitness-coach", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errBody := out["error"].(map[string]interface{})
			assert.Equal(t, "INVALID_REQUEST_BODY", errBody["code"])
		})
	}
}

func TestCoachValidationDetails(t *testing.T) {
	h, _ := newTestHandler(t, ok(domain.ServiceWorkout, `{}`), ok(domain.ServiceMeal, `{}`))

	rec, out := call(t, h.Coach, http.MethodPost, "/v1/fitness-coach", `{"username":"al","userId":"u","query":"short"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := out["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	details := errBody["details"].(map[string]interface{})
	assert.Equal(t, "Username must be at least 3 characters", details["username"])
	assert.Equal(t, "Query must be at least 10 characters", details["query"])
}

func TestGenerateMealPlanContract(t *testing.T) {
	h, _ := newTestHandler(t, nil, nil)

	rec, out := call(t, h.GenerateMealPlan, http.MethodPost, "/v1/meal-plans",
		`{"username":"alice","userId":"user-1","query":"paleo meals for marathon training"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(200), out["statusCode"])
	body := out["body"].(map[string]interface{})
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	meta := data["metadata"].(map[string]interface{})
	assert.Equal(t, "endurance", meta["fitness_goal"])
	assert.Equal(t, float64(2200), meta["calorie_target"])
	assert.Contains(t, data, "nutrition_analysis")
}

func TestGenerateMealPlanRequiresQuery(t *testing.T) {
	h, _ := newTestHandler(t, nil, nil)

	rec, out := call(t, h.GenerateMealPlan, http.MethodPost, "/v1/meal-plans", `{"username":"alice"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := out["body"].(map[string]interface{})
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "Query is required")
}

func TestOptimizeMeal(t *testing.T) {
	h, _ := newTestHandler(t, nil, nil)

	body := `{"current_meal":{"title":"Toast","calories_per_serving":900,"protein_g":10,"carbs_g":120,"fat_g":30},
		"fitness_goal":"weight_loss","target_calories":500}`
	rec, out := call(t, h.OptimizeMeal, http.MethodPost, "/v1/meals/optimize", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := out["data"].(map[string]interface{})
	suggestions := data["optimization_suggestions"].([]interface{})
	require.NotEmpty(t, suggestions)
	types := []string{}
	for _, s := range suggestions {
		types = append(types, s.(map[string]interface{})["type"].(string))
	}
	assert.Contains(t, types, "reduce_calories")

	rec, out = call(t, h.OptimizeMeal, http.MethodPost, "/v1/meals/optimize", `{"current_meal":{},"target_calories":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", out["error"].(map[string]interface{})["code"])
}

func TestSuggestRecipes(t *testing.T) {
	h, _ := newTestHandler(t, nil, nil)

	rec, out := call(t, h.SuggestRecipes, http.MethodGet, "/v1/recipes/suggestions?min_calories=300&max_calories=400", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["count"])

	rec, _ = call(t, h.SuggestRecipes, http.MethodGet, "/v1/recipes/suggestions?min_calories=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = call(t, h.SuggestRecipes, http.MethodGet, "/v1/recipes/suggestions?min_calories=500&max_calories=100", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	h, _ := newTestHandler(t, nil, nil)
	call(t, h.SuggestRecipes, http.MethodGet, "/v1/recipes/suggestions", "")

	_, out := call(t, h.CacheStats, http.MethodGet, "/v1/cache/stats", "")
	assert.Equal(t, float64(1), out["data"].(map[string]interface{})["total_entries"])

	_, out = call(t, h.ClearCache, http.MethodDelete, "/v1/cache?pattern=suggestions", "")
	assert.Equal(t, float64(1), out["data"].(map[string]interface{})["cleared"])
}

func TestSessionEndpoints(t *testing.T) {
	h, _ := newTestHandler(t, ok(domain.ServiceWorkout, `{}`), ok(domain.ServiceMeal, `{}`))

	_, out := call(t, h.Coach, http.MethodPost, "/v1/fitness-coach", coachBody)
	sessionID := out["data"].(map[string]interface{})["userProfile"].(map[string]interface{})["sessionId"].(string)

	rec, out := call(t, h.GetSession, http.MethodGet, "/v1/sessions/"+sessionID, "", "session_id", sessionID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", out["data"].(map[string]interface{})["userId"])

	rec, out = call(t, h.GetSession, http.MethodGet, "/v1/sessions/nope", "", "session_id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", out["error"].(map[string]interface{})["code"])

	rec, out = call(t, h.ListUserSessions, http.MethodGet, "/v1/users/user-1/sessions?limit=5", "", "user_id", "user-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
	assert.Equal(t, float64(1), data["usage"].(map[string]interface{})["requests"])
}

type unreachableStore struct {
	repository.SessionStore
}

func (unreachableStore) GetSession(context.Context, string) (*domain.Session, error) {
	return nil, errors.New("connection refused")
}

func (unreachableStore) ListSessions(context.Context, string, int) ([]domain.Session, error) {
	return nil, errors.New("connection refused")
}

func TestSessionEndpointsStorageUnavailable(t *testing.T) {
	store := unreachableStore{SessionStore: helpers.NewTestSQLiteStore(t)}
	opt := optimizer.New(optimizer.DefaultCatalog(), cache.New())
	svc := service.New(store, nil, nil, opt, &config.Config{}, nil, zerolog.Nop(), metrics.New())
	h := NewHandler(svc, zerolog.Nop())

	rec, out := call(t, h.GetSession, http.MethodGet, "/v1/sessions/s-1", "", "session_id", "s-1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STORAGE_UNAVAILABLE", out["error"].(map[string]interface{})["code"])

	rec, out = call(t, h.ListUserSessions, http.MethodGet, "/v1/users/user-1/sessions", "", "user_id", "user-1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "STORAGE_UNAVAILABLE", out["error"].(map[string]interface{})["code"])
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, ok(domain.ServiceWorkout, `{}`), ok(domain.ServiceMeal, `{}`))

	rec, out := call(t, h.Health, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", out["status"])
}
