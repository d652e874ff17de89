// Package domain defines the core domain models for the coach service.
package domain

// ServiceID identifies a downstream collaborator with its own retry policy.
type ServiceID string

const (
	ServiceWorkout ServiceID = "workout"
	ServiceMeal    ServiceID = "meal"
	ServiceStorage ServiceID = "storage"
)

// RunState is the orchestration state of a single coach request.
type RunState string

const (
	RunStateReceived   RunState = "RECEIVED"
	RunStateValidated  RunState = "VALIDATED"
	RunStateGenerating RunState = "GENERATING"
	RunStateMerged     RunState = "MERGED"
	RunStatePersisted  RunState = "PERSISTED"
	RunStateResponded  RunState = "RESPONDED"
)

// ErrorCode is a stable, client-visible error identifier.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeInvalidRequestBody ErrorCode = "INVALID_REQUEST_BODY"
	CodeAllServicesFailed  ErrorCode = "ALL_SERVICES_FAILED"
	CodeWorkoutUnavailable ErrorCode = "BEDROCK_UNAVAILABLE"
	CodeMealUnavailable    ErrorCode = "SPOONACULAR_UNAVAILABLE"
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	CodeGenerationFailed   ErrorCode = "GENERATION_FAILED"
	CodeCriticalGeneration ErrorCode = "CRITICAL_GENERATION_ERROR"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// UnavailableCode returns the service-specific "unavailable" code.
func UnavailableCode(service ServiceID) ErrorCode {
	switch service {
	case ServiceWorkout:
		return CodeWorkoutUnavailable
	case ServiceMeal:
		return CodeMealUnavailable
	case ServiceStorage:
		return CodeStorageUnavailable
	}
	return CodeInternal
}

// MealSlot names one of the three required meals of a day.
type MealSlot string

const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
	SlotDinner    MealSlot = "dinner"
)
