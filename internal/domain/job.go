package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a background job.
type JobStatus string

// Possible job status values
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Built-in job type identifiers. Additional types may be registered
// with the worker at runtime.
const (
	JobTypeDroidExec   = "droid_exec"
	JobTypeNovaMission = "nova_mission"
)

// Defaults applied when an enqueue request leaves the field unset.
const (
	DefaultMaxAttempts = 3

	// retryBaseDelay is the backoff delay after the first failed attempt.
	retryBaseDelay = 5 * time.Second

	// retryMaxDelay caps the exponential backoff growth.
	retryMaxDelay = 5 * time.Minute
)

// Common validation errors for Job
var (
	ErrEmptyJobID        = errors.New("job ID cannot be empty")
	ErrEmptyJobType      = errors.New("job type cannot be empty")
	ErrInvalidJobStatus  = errors.New("invalid job status")
	ErrInvalidMaxAttempt = errors.New("job max attempts must be at least 1")
	ErrNegativeTimeout   = errors.New("job timeout cannot be negative")
)

// Job represents a persisted unit of asynchronous work. Jobs are created
// pending by a producer, claimed and mutated exclusively by the worker
// holding the claim, and retained after reaching a terminal state.
type Job struct {
	ID     uuid.UUID `json:"id"`
	Type   string    `json:"type"`
	Status JobStatus `json:"status"`

	// Priority orders claiming: higher values are claimed sooner.
	// Jobs of equal priority are claimed oldest first.
	Priority int `json:"priority"`

	// Payload is opaque to the store; only the handler for Type
	// interprets it.
	Payload json.RawMessage `json:"payload"`

	// Result and ErrorMessage are set when the job reaches a terminal
	// state. A retryable failure keeps ErrorMessage from the most
	// recent attempt while the job is pending again.
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`

	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	// RetryAfter is the earliest time a retried job becomes claimable
	// again. Nil means the job is immediately eligible.
	RetryAfter *time.Time `json:"retry_after,omitempty"`

	// TimeoutSeconds bounds a single execution attempt. Zero disables
	// the timeout entirely; the execution may run unbounded.
	TimeoutSeconds int `json:"timeout_seconds"`

	// Correlation fields tie the job back to the conversation that
	// produced it.
	ConversationID string `json:"conversation_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	Agent          string `json:"agent,omitempty"`
	UserIdentifier string `json:"user,omitempty"`

	Metadata json.RawMessage `json:"metadata,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a pending Job from an enqueue request, generating the
// ID and applying defaults. Returns an error if validation fails.
func NewJob(req EnqueueRequest) (*Job, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}

	job := &Job{
		ID:             uuid.New(),
		Type:           req.Type,
		Status:         JobStatusPending,
		Priority:       req.Priority,
		Payload:        req.Payload,
		MaxAttempts:    maxAttempts,
		TimeoutSeconds: req.TimeoutSeconds,
		ConversationID: req.ConversationID,
		SessionID:      req.SessionID,
		Agent:          req.Agent,
		UserIdentifier: req.UserIdentifier,
		Metadata:       req.Metadata,
		CreatedAt:      time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// EnqueueRequest carries the producer-supplied fields for a new job.
type EnqueueRequest struct {
	Type           string          `json:"type"            validate:"required,min=1,max=64"`
	Payload        json.RawMessage `json:"payload"`
	Priority       int             `json:"priority"        validate:"gte=-100,lte=100"`
	MaxAttempts    int             `json:"max_attempts"    validate:"gte=0,lte=20"`
	TimeoutSeconds int             `json:"timeout_seconds" validate:"gte=0"`
	ConversationID string          `json:"conversation_id" validate:"max=128"`
	SessionID      string          `json:"session_id"      validate:"max=128"`
	Agent          string          `json:"agent"           validate:"max=64"`
	UserIdentifier string          `json:"user"            validate:"max=128"`
	Metadata       json.RawMessage `json:"metadata"`
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.Type == "" {
		return ErrEmptyJobType
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.MaxAttempts < 1 {
		return ErrInvalidMaxAttempt
	}

	if j.TimeoutSeconds < 0 {
		return ErrNegativeTimeout
	}

	return nil
}

// IsTerminal reports whether the job has reached a final state.
// Terminal jobs are immutable.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Timeout returns the per-attempt execution bound, or zero when the job
// runs unbounded.
func (j *Job) Timeout() time.Duration {
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// RetryBackoff returns the delay before a job that has failed the given
// number of attempts becomes claimable again. The delay doubles with
// each attempt and is capped, so RetryBackoff is monotonically
// non-decreasing in attempts.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := retryBaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= retryMaxDelay {
			return retryMaxDelay
		}
	}

	return delay
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
