package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrTerminalJob is returned when an operation attempts to mutate a
	// job that has already completed or failed.
	ErrTerminalJob = errors.New("job is in a terminal state")
)
