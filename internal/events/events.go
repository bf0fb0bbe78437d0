package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/phrazzld/novaq/internal/domain"
)

// EventType identifies the kind of job lifecycle event.
type EventType string

// Job lifecycle event types emitted by the worker.
const (
	JobStarted   EventType = "job_started"
	JobProgress  EventType = "job_progress"
	JobCompleted EventType = "job_completed"
	JobFailed    EventType = "job_failed"
)

// JobEvent describes a change in a job's execution. The Job pointer is
// a snapshot taken at emission time; handlers must not mutate it.
type JobEvent struct {
	Type EventType
	Job  *domain.Job

	// Progress fields, set on JobProgress events. Percent is
	// monotonically non-decreasing within a job.
	Percent int
	Message string
	Phase   string

	// Presentation hints carried from the job payload.
	Agent   string
	Mission string

	// Completion fields, set on JobCompleted / JobFailed events.
	Result       json.RawMessage
	FinalMessage string
	Error        string
	WillRetry    bool
	Duration     time.Duration

	At time.Time
}

// EventHandler defines an interface for components that consume job
// events. Handler errors are logged by the emitter and never propagate
// back to the execution path.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventEmitter defines an interface for components that publish job
// events. This allows the worker to report progress without direct
// knowledge of its observers.
type EventEmitter interface {
	// Emit publishes the given event to all registered handlers.
	// Emission is asynchronous; Emit returns without waiting for
	// handlers to finish.
	Emit(ctx context.Context, event *JobEvent)

	// RegisterHandler adds a new event handler to receive events.
	RegisterHandler(handler EventHandler)
}
