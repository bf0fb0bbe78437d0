package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrJobNotFound indicates that the requested job does not exist in the store.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrNoJob is returned by ClaimNextJob when no eligible pending job
	// exists. Losing a claim race to another worker surfaces the same
	// way; both are benign and the caller simply retries next tick.
	ErrNoJob = errors.New("no claimable job")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a job with an already-used ID).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTerminalJob is returned when an update targets a job that has
	// already reached a terminal state. Terminal jobs are immutable.
	ErrTerminalJob = errors.New("job is in a terminal state")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")
)

// IsNotFoundError checks if the given error represents a "not found"
// scenario, including wrapped sentinel errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
