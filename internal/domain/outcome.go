package domain

import "encoding/json"

// GenerationOutcome is the result of one generator client run. It is either a
// success carrying the generator payload or a failure carrying a code; build it
// with Succeeded or Failed.
type GenerationOutcome struct {
	Service   ServiceID       `json:"service"`
	Success   bool            `json:"success"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ErrorCode ErrorCode       `json:"errorCode,omitempty"`
	Message   string          `json:"message,omitempty"`
	Attempts  int             `json:"attempts"`
}

// Succeeded builds a success outcome.
func Succeeded(service ServiceID, payload json.RawMessage, attempts int) GenerationOutcome {
	return GenerationOutcome{
		Service:  service,
		Success:  true,
		Payload:  payload,
		Attempts: attempts,
	}
}

// Failed builds a failure outcome.
func Failed(service ServiceID, code ErrorCode, message string, attempts int) GenerationOutcome {
	return GenerationOutcome{
		Service:   service,
		ErrorCode: code,
		Message:   message,
		Attempts:  attempts,
	}
}

// OrchestrationResult is the merged outcome of a coach request.
type OrchestrationResult struct {
	Profile   UserProfile
	Workout   *GenerationOutcome
	Meal      *GenerationOutcome
	SessionID string
	Persisted bool
}

// WorkoutGenerated reports whether the workout half succeeded.
func (r *OrchestrationResult) WorkoutGenerated() bool {
	return r.Workout != nil && r.Workout.Success
}

// MealPlanGenerated reports whether the meal half succeeded.
func (r *OrchestrationResult) MealPlanGenerated() bool {
	return r.Meal != nil && r.Meal.Success
}

// Partial reports whether exactly one half succeeded.
func (r *OrchestrationResult) Partial() bool {
	return r.WorkoutGenerated() != r.MealPlanGenerated()
}

// WorkoutPlan returns the workout payload or nil.
func (r *OrchestrationResult) WorkoutPlan() json.RawMessage {
	if !r.WorkoutGenerated() {
		return nil
	}
	return r.Workout.Payload
}

// MealPlan returns the meal payload or nil.
func (r *OrchestrationResult) MealPlan() json.RawMessage {
	if !r.MealPlanGenerated() {
		return nil
	}
	return r.Meal.Payload
}
