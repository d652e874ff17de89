package domain

import (
	"encoding/json"
	"time"
)

// SessionTTL is how long a stored coaching session is kept.
const SessionTTL = 24 * time.Hour

// Session is a persisted coaching session: the request plus whichever plans
// were generated.
type Session struct {
	SessionID   string          `json:"sessionId"`
	UserID      string          `json:"userId"`
	Username    string          `json:"username"`
	Query       string          `json:"query"`
	WorkoutPlan json.RawMessage `json:"workoutPlan,omitempty"`
	MealPlan    json.RawMessage `json:"mealPlan,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
}

// APIUsage is a best-effort usage counter update for a user.
type APIUsage struct {
	UserID          string
	GeneratorTokens int
	MealCalls       int
	RecordedAt      time.Time
}

// UsageSummary aggregates a user's recorded usage.
type UsageSummary struct {
	UserID          string `json:"userId"`
	Requests        int    `json:"requests"`
	GeneratorTokens int    `json:"generatorTokens"`
	MealCalls       int    `json:"mealCalls"`
}
