package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/optimizer"
)

const (
	defaultSuggestionMin = 0
	defaultSuggestionMax = 1000
)

// OptimizeMealRequest is the request to analyze a single meal.
type OptimizeMealRequest struct {
	CurrentMeal    domain.Recipe `json:"current_meal"`
	FitnessGoal    string        `json:"fitness_goal"`
	TargetCalories int           `json:"target_calories"`
}

// generatorReply writes the generator contract: the envelope status is also
// the HTTP status.
func generatorReply(c echo.Context, status int, data json.RawMessage, errMsg string) error {
	return c.JSON(status, domain.GeneratorEnvelope{
		StatusCode: status,
		Body: domain.GeneratorBody{
			Success: errMsg == "",
			Data:    data,
			Error:   errMsg,
		},
	})
}

// GenerateMealPlan serves the meal generator contract from the optimizer.
// POST /v1/meal-plans
func (h *Handler) GenerateMealPlan(c echo.Context) error {
	var req domain.GeneratorRequest
	if err := decodeBody(c, &req); err != nil {
		var coded *domain.CodedError
		if errors.As(err, &coded) {
			return generatorReply(c, http.StatusBadRequest, nil, coded.Message)
		}
		return generatorReply(c, http.StatusBadRequest, nil, err.Error())
	}

	data, err := h.service.MealPlan(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, optimizer.ErrInvalidRequest) {
			return generatorReply(c, http.StatusBadRequest, nil, err.Error())
		}
		h.logger.Error().Err(err).Msg("meal plan generation failed")
		return generatorReply(c, http.StatusInternalServerError, nil, err.Error())
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return generatorReply(c, http.StatusInternalServerError, nil, err.Error())
	}
	return generatorReply(c, http.StatusOK, raw, "")
}

// OptimizeMeal suggests adjustments to a single meal.
// POST /v1/meals/optimize
func (h *Handler) OptimizeMeal(c echo.Context) error {
	var req OptimizeMealRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	res, err := h.service.OptimizeMeal(c.Request().Context(), req.CurrentMeal, req.FitnessGoal, req.TargetCalories)
	if err != nil {
		return h.fail(c, invalidOrInternal(err))
	}
	return h.ok(c, http.StatusOK, res)
}

// SuggestRecipes lists catalog recipes within a calorie range.
// GET /v1/recipes/suggestions?min_calories=&max_calories=&dietary_preferences=&meal_type=
func (h *Handler) SuggestRecipes(c echo.Context) error {
	min, err := intParam(c, "min_calories", defaultSuggestionMin)
	if err != nil {
		return h.fail(c, err)
	}
	max, err := intParam(c, "max_calories", defaultSuggestionMax)
	if err != nil {
		return h.fail(c, err)
	}

	var prefs []string
	for _, p := range strings.Split(c.QueryParam("dietary_preferences"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefs = append(prefs, strings.ToLower(p))
		}
	}

	res, err := h.service.SuggestRecipes(c.Request().Context(), min, max, prefs, c.QueryParam("meal_type"))
	if err != nil {
		return h.fail(c, invalidOrInternal(err))
	}
	return h.ok(c, http.StatusOK, res)
}

// CacheStats reports optimizer cache occupancy.
// GET /v1/cache/stats
func (h *Handler) CacheStats(c echo.Context) error {
	return h.ok(c, http.StatusOK, h.service.CacheStats())
}

// ClearCache drops cache entries matching pattern, or all of them.
// DELETE /v1/cache?pattern=
func (h *Handler) ClearCache(c echo.Context) error {
	pattern := c.QueryParam("pattern")
	cleared := h.service.ClearCache(pattern)
	return h.ok(c, http.StatusOK, map[string]interface{}{
		"cleared": cleared,
		"pattern": pattern,
	})
}

func intParam(c echo.Context, name string, defaultVal int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewCodedError(domain.CodeValidation, name+" must be an integer", err)
	}
	return v, nil
}

func invalidOrInternal(err error) error {
	if errors.Is(err, optimizer.ErrInvalidRequest) {
		return domain.NewCodedError(domain.CodeValidation, err.Error(), err)
	}
	return err
}
