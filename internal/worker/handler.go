package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phrazzld/novaq/internal/domain"
)

// Handler execution errors.
var (
	// ErrHandlerNotFound indicates no handler is registered for a job's
	// type. This failure is never retried; the same worker would just
	// fail it again.
	ErrHandlerNotFound = errors.New("no handler registered for job type")

	// ErrNonRetryable wraps handler errors that must not be retried
	// even when the job has attempts remaining.
	ErrNonRetryable = errors.New("non-retryable")
)

// NonRetryable marks err so the worker fails the job permanently
// instead of scheduling a retry.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNonRetryable, err)
}

// ProgressFunc reports intermediate progress from a handler. Percent is
// clamped and made monotonic by the worker; phase and message are
// presentation hints only.
type ProgressFunc func(percent int, message, phase string)

// Result carries a handler's successful outcome.
type Result struct {
	// Result is the structured outcome persisted with the job.
	Result json.RawMessage

	// FinalMessage, when non-empty, is delivered verbatim to the user
	// in place of a synthesized completion summary.
	FinalMessage string

	// DurationMs is the handler-measured execution time. Zero means
	// the worker's own measurement is used.
	DurationMs int64
}

// Handler performs the actual work for one job type. Returning an error
// counts as a retryable failure unless wrapped with NonRetryable;
// permanence is otherwise decided by attempts exhaustion.
type Handler func(ctx context.Context, job *domain.Job, progress ProgressFunc) (*Result, error)
