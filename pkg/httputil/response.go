package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/validator"
)

var statusByCode = map[errors.ErrorCode]int{
	errors.ErrNotFound:         http.StatusNotFound,
	errors.ErrBadRequest:       http.StatusBadRequest,
	errors.ErrUnauthorized:     http.StatusUnauthorized,
	errors.ErrForbidden:        http.StatusForbidden,
	errors.ErrInternal:         http.StatusInternalServerError,
	errors.ErrValidation:       http.StatusBadRequest,
	errors.ErrStageFailure:     http.StatusInternalServerError,
	errors.ErrNotInitialized:   http.StatusServiceUnavailable,
	errors.ErrCapabilityAbsent: http.StatusServiceUnavailable,
}

// StatusCode maps err to an HTTP status. Errors without an AppError in their
// chain are 500.
func StatusCode(err error) int {
	code, ok := errors.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Message is the text safe to return to a client. Server errors never expose
// the wrapped cause.
func Message(err error) string {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return http.StatusText(status)
}

// FieldErrors returns the per-field validation failures carried by err, if any.
func FieldErrors(err error) validator.Errors {
	var verrs validator.Errors
	if stderrors.As(err, &verrs) {
		return verrs
	}
	return nil
}
