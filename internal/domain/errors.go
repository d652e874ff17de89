package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAllServicesFailed = errors.New("all generation services failed")
	ErrDuplicateSession  = errors.New("duplicate session")
)

// CodedError is an error with a client-visible code and HTTP status.
type CodedError struct {
	Code    ErrorCode
	Status  int
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// NewCodedError builds a CodedError whose status follows StatusFor(code).
func NewCodedError(code ErrorCode, message string, err error) *CodedError {
	return &CodedError{Code: code, Status: StatusFor(code), Message: message, Err: err}
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code ErrorCode) int {
	switch code {
	case CodeValidation, CodeInvalidRequestBody:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAllServicesFailed, CodeWorkoutUnavailable, CodeMealUnavailable, CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	case CodeGenerationFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
