package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	req := EnqueueRequest{
		Type:           JobTypeDroidExec,
		Payload:        json.RawMessage(`{"prompt":"summarize the repo"}`),
		Priority:       5,
		TimeoutSeconds: 120,
		ConversationID: "conv-42",
		SessionID:      "sess-7",
		Agent:          "nova",
		UserIdentifier: "user@example.com",
	}

	job, err := NewJob(req)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if job.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if job.Status != JobStatusPending {
		t.Errorf("Expected status %s, got %s", JobStatusPending, job.Status)
	}

	if job.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected default max attempts %d, got %d", DefaultMaxAttempts, job.MaxAttempts)
	}

	if job.Attempts != 0 {
		t.Errorf("Expected zero attempts on a new job, got %d", job.Attempts)
	}

	if job.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	if job.ConversationID != "conv-42" {
		t.Errorf("Expected conversation ID conv-42, got %s", job.ConversationID)
	}

	// Test missing type
	_, err = NewJob(EnqueueRequest{})
	if err != ErrEmptyJobType {
		t.Errorf("Expected error %v, got %v", ErrEmptyJobType, err)
	}

	// Test negative timeout
	_, err = NewJob(EnqueueRequest{Type: "echo", TimeoutSeconds: -1})
	if err != ErrNegativeTimeout {
		t.Errorf("Expected error %v, got %v", ErrNegativeTimeout, err)
	}
}

func TestJobValidate(t *testing.T) {
	t.Parallel()

	validJob := Job{
		ID:          uuid.New(),
		Type:        "echo",
		Status:      JobStatusPending,
		MaxAttempts: 1,
	}

	if err := validJob.Validate(); err != nil {
		t.Errorf("Expected valid job to pass validation, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(j *Job)
		wantErr error
	}{
		{"nil ID", func(j *Job) { j.ID = uuid.Nil }, ErrEmptyJobID},
		{"empty type", func(j *Job) { j.Type = "" }, ErrEmptyJobType},
		{"bad status", func(j *Job) { j.Status = "paused" }, ErrInvalidJobStatus},
		{"zero max attempts", func(j *Job) { j.MaxAttempts = 0 }, ErrInvalidMaxAttempt},
		{"negative timeout", func(j *Job) { j.TimeoutSeconds = -5 }, ErrNegativeTimeout},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := validJob
			tc.mutate(&job)
			if err := job.Validate(); err != tc.wantErr {
				t.Errorf("Expected error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestJobIsTerminal(t *testing.T) {
	t.Parallel()

	cases := map[JobStatus]bool{
		JobStatusPending:   false,
		JobStatusRunning:   false,
		JobStatusCompleted: true,
		JobStatusFailed:    true,
	}

	for status, want := range cases {
		job := Job{Status: status}
		if got := job.IsTerminal(); got != want {
			t.Errorf("IsTerminal for %s: expected %v, got %v", status, want, got)
		}
	}
}

func TestJobTimeout(t *testing.T) {
	t.Parallel()

	job := Job{TimeoutSeconds: 90}
	if job.Timeout() != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %v", job.Timeout())
	}

	// Zero means unbounded
	unbounded := Job{TimeoutSeconds: 0}
	if unbounded.Timeout() != 0 {
		t.Errorf("Expected zero timeout, got %v", unbounded.Timeout())
	}
}

func TestRetryBackoff(t *testing.T) {
	t.Parallel()

	// Doubles per attempt until the cap.
	expected := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		160 * time.Second,
		5 * time.Minute,
		5 * time.Minute,
	}

	for i, want := range expected {
		attempts := i + 1
		if got := RetryBackoff(attempts); got != want {
			t.Errorf("RetryBackoff(%d): expected %v, got %v", attempts, want, got)
		}
	}

	// Strictly increasing until the cap is reached.
	prev := time.Duration(0)
	for attempts := 1; attempts <= 12; attempts++ {
		delay := RetryBackoff(attempts)
		if delay < prev {
			t.Errorf("RetryBackoff decreased at attempt %d: %v < %v", attempts, delay, prev)
		}
		prev = delay
	}

	// Non-positive attempt counts behave like the first.
	if RetryBackoff(0) != 5*time.Second {
		t.Errorf("Expected base delay for zero attempts, got %v", RetryBackoff(0))
	}
}
