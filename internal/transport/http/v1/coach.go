package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

const coachSuccessMessage = "Fitness and nutrition plan generated successfully"

// decodeBody reads a JSON object body into v. An empty body is an error.
func decodeBody(c echo.Context, v interface{}) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return badRequest("Request body too large")
		}
		return badRequest(fmt.Sprintf("Failed to read request body: %v", err))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return badRequest("Request body is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest(fmt.Sprintf("Invalid JSON in request body: %v", err))
	}
	return nil
}

// Coach generates a workout and meal plan.
// POST /v1/fitness-coach
func (h *Handler) Coach(c echo.Context) error {
	var req domain.CoachRequest
	if err := decodeBody(c, &req); err != nil {
		return h.fail(c, err)
	}

	result, err := h.service.Coach(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}

	workoutAttempts, mealAttempts := 0, 0
	if result.Workout != nil {
		workoutAttempts = result.Workout.Attempts
	}
	if result.Meal != nil {
		mealAttempts = result.Meal.Attempts
	}

	return h.ok(c, http.StatusOK, domain.CoachResponse{
		Message:     coachSuccessMessage,
		UserProfile: result.Profile,
		WorkoutPlan: result.WorkoutPlan(),
		MealPlan:    result.MealPlan(),
		Metadata: domain.ResponseMetadata{
			WorkoutGenerated:  result.WorkoutGenerated(),
			MealPlanGenerated: result.MealPlanGenerated(),
			SessionStored:     result.Persisted,
			WorkoutAttempts:   workoutAttempts,
			MealAttempts:      mealAttempts,
		},
	})
}
