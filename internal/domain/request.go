package domain

import (
	"encoding/json"
	"time"
)

// CoachRequest is the inbound request to the coach endpoint.
type CoachRequest struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Query    string `json:"query"`
}

// GeneratorRequest is the normalized payload sent to a downstream generator.
type GeneratorRequest struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Query    string `json:"query"`
}

// NewGeneratorRequest builds the downstream payload from a sanitized request.
func NewGeneratorRequest(req CoachRequest) GeneratorRequest {
	return GeneratorRequest{
		Username: req.Username,
		UserID:   req.UserID,
		Query:    req.Query,
	}
}

// UserProfile is the echo of the caller identity returned in the response.
type UserProfile struct {
	Username  string    `json:"username"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// ResponseMetadata flags which halves of the plan were produced.
type ResponseMetadata struct {
	WorkoutGenerated  bool `json:"workoutGenerated"`
	MealPlanGenerated bool `json:"mealPlanGenerated"`
	SessionStored     bool `json:"sessionStored"`
	WorkoutAttempts   int  `json:"workoutAttempts"`
	MealAttempts      int  `json:"mealAttempts"`
}

// CoachResponse is the data section of a successful coach envelope.
type CoachResponse struct {
	Message     string           `json:"message"`
	UserProfile UserProfile      `json:"userProfile"`
	WorkoutPlan json.RawMessage  `json:"workoutPlan"`
	MealPlan    json.RawMessage  `json:"mealPlan"`
	Metadata    ResponseMetadata `json:"metadata"`
}

// Envelope is the response wrapper returned by every coach endpoint.
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *ErrorBody  `json:"error"`
	RequestID string      `json:"requestId"`
	Timestamp string      `json:"timestamp"`
}

// ErrorBody is the error section of an envelope.
type ErrorBody struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// GeneratorEnvelope is the contract a plan generator answers with.
type GeneratorEnvelope struct {
	StatusCode int           `json:"statusCode"`
	Body       GeneratorBody `json:"body"`
}

// GeneratorBody is the inner body of a generator envelope.
type GeneratorBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}
