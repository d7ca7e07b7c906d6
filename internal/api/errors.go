package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/service"
	"github.com/sentiq/sentiq-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound

	// Payload too large
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge

	// Unsupported file format
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Conflict: the transition lost a race or is illegal
	case errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, store.ErrStaleStatus):
		return http.StatusConflict

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrSessionNotFound):
		return "Session not found"

	case errors.Is(err, domain.ErrFileTooLarge):
		return "File too large"

	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "Unsupported file format"

	case errors.Is(err, domain.ErrEmptyContent):
		return "Content cannot be empty"

	// Validation errors are deliberately echoed: they describe the
	// caller's own input, not internals.
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat):
		return err.Error()

	case errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, store.ErrStaleStatus):
		return "Task state changed concurrently"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validator
// errors and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Example: "Key: 'RunSingleRequest.Text' Error:Field validation for 'Text' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}

				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
