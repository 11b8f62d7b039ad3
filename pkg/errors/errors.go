package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Pipeline error codes
const (
	ErrValidation ErrorCode = iota + 2000
	ErrStageFailure
	ErrNotInitialized
	ErrCapabilityAbsent
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// NewValidation is returned when a request is rejected before any scoring runs.
func NewValidation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

// NewStageFailure records an unexpected failure inside a single pipeline stage.
func NewStageFailure(stage string, err error) *AppError {
	return &AppError{
		Code:    ErrStageFailure,
		Message: fmt.Sprintf("%s stage failed", stage),
		Err:     err,
	}
}

func NewNotInitialized(component string) *AppError {
	return &AppError{
		Code:    ErrNotInitialized,
		Message: fmt.Sprintf("%s is not initialized", component),
	}
}

// NewCapabilityAbsent marks an optional capability that is not configured.
// Callers fall back to their degraded path instead of surfacing it.
func NewCapabilityAbsent(capability string, err error) *AppError {
	return &AppError{
		Code:    ErrCapabilityAbsent,
		Message: fmt.Sprintf("%s capability is unavailable", capability),
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return 0, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
