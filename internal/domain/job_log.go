package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobLogLevel classifies a job log entry.
type JobLogLevel string

// Possible job log levels
const (
	JobLogLevelDebug JobLogLevel = "debug"
	JobLogLevelInfo  JobLogLevel = "info"
	JobLogLevelWarn  JobLogLevel = "warn"
	JobLogLevelError JobLogLevel = "error"
)

// JobLog is an append-only record of something that happened during a
// job's lifecycle. Entries are never mutated and are ordered by
// insertion time within a single job only.
type JobLog struct {
	ID        int64           `json:"id"`
	JobID     uuid.UUID       `json:"job_id"`
	Level     JobLogLevel     `json:"level"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
