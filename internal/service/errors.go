package service

import (
	"errors"
	"fmt"

	"github.com/sentiq/sentiq-api/internal/store"
)

// Common sentinel errors for the service layer.
var (
	// ErrTaskNotFound indicates that no task matches the query.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidStatusTransition indicates a status change the state
	// machine forbids. If legitimate flow ever triggers this it is a
	// bug, so callers log it loudly.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_single", "get_last")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// Sentinel errors the caller is expected to branch on are returned
// directly rather than wrapped.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTaskNotFound) || errors.Is(err, ErrInvalidStatusTransition) {
		return err
	}

	// Map store-level not-found to the service-level sentinel.
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
