// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity or a submission
	// fails validation. This is often wrapped with a more specific
	// error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidFormat is returned when data is not in the expected format.
	ErrInvalidFormat = errors.New("invalid format")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrUnsupportedFormat is returned when a file has an extension the
	// system does not analyze. Distinct from ErrValidation so callers can
	// tell "wrong kind of file" from "malformed content of right kind".
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge is returned when an uploaded file meets or exceeds
	// the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)
