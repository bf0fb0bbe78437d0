package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/novaq/internal/domain"
)

// QueueStats summarizes job counts by status over a recent window.
type QueueStats struct {
	WindowHours int       `json:"window_hours"`
	Pending     int       `json:"pending"`
	Running     int       `json:"running"`
	Completed   int       `json:"completed"`
	Failed      int       `json:"failed"`
	Total       int       `json:"total"`
	GeneratedAt time.Time `json:"generated_at"`
}

// JobStore defines the interface for durable job persistence.
// Version: 1.0
type JobStore interface {
	// EnqueueJob persists a new pending job. The job must already be
	// validated; validation errors are returned before any write.
	EnqueueJob(ctx context.Context, job *domain.Job) error

	// ClaimNextJob atomically selects the highest-priority, oldest
	// eligible pending job, marks it running, sets started_at,
	// increments attempts, and returns it. When allowedTypes is
	// non-empty, only jobs of those types are considered.
	//
	// Atomicity is mandatory: concurrent callers, including separate
	// worker processes sharing the database, must never receive the
	// same row. Returns ErrNoJob when nothing is claimable.
	ClaimNextJob(ctx context.Context, allowedTypes []string) (*domain.Job, error)

	// CompleteJob transitions a running job to its terminal completed
	// state and records the result. Returns ErrJobNotFound if the job
	// does not exist and ErrTerminalJob if it already finished.
	CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error

	// FailJob records a failed attempt. When retryable and the job has
	// attempts remaining, the job reverts to pending with retry_after
	// set from the backoff policy; otherwise it reaches terminal failed
	// with the error message retained.
	FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, retryable bool) error

	// AppendJobLog inserts an append-only log entry for the job.
	// Entries are never mutated after insertion.
	AppendJobLog(ctx context.Context, jobID uuid.UUID, level domain.JobLogLevel, message string, data json.RawMessage) error

	// GetJob retrieves a job by ID. Returns ErrJobNotFound if the job
	// does not exist.
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// GetJobLogs returns a job's log entries ordered by insertion time.
	GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]*domain.JobLog, error)

	// GetQueueStats returns job counts by status among jobs created in
	// the trailing window.
	GetQueueStats(ctx context.Context, windowHours int) (*QueueStats, error)

	// WithTx returns a new JobStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) JobStore
}
