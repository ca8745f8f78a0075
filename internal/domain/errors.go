package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the engine's error taxonomy. InvalidInput and
// InsufficientData abort the model or pipeline stage that needs the value
// and must surface to the caller; defaulting a missing marker to a "safe"
// risk value would misrepresent clinical risk.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientData = errors.New("insufficient data")
)

// Error codes for structured error responses.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeInternalServer   = "INTERNAL_SERVER_ERROR"
	CodeValidation       = "VALIDATION_ERROR"
	CodeRateLimit        = "RATE_LIMIT_EXCEEDED"
)

// EngineError is a standardized error response carried across the API
// boundary.
type EngineError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError with a UTC timestamp.
func NewEngineError(code, message, details, requestID string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents an input validation failure on a single field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap lets callers match validation failures against ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// InsufficientDataError reports which marker a classification demanded but
// did not receive.
type InsufficientDataError struct {
	Marker string `json:"marker"`
	Model  string `json:"model,omitempty"`
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s requires %s but it is absent", e.Model, e.Marker)
	}
	return fmt.Sprintf("required marker %s is absent", e.Marker)
}

// Unwrap lets callers match against ErrInsufficientData.
func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}
