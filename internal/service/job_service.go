package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phrazzld/novaq/internal/domain"
	"github.com/phrazzld/novaq/internal/store"
)

// JobService provides job queue operations for producers.
type JobService interface {
	// EnqueueJob validates the request and persists a new pending job.
	EnqueueJob(ctx context.Context, req domain.EnqueueRequest) (*domain.Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error)

	// GetJobLogs retrieves a job's execution log entries.
	GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]*domain.JobLog, error)

	// GetQueueStats summarizes the queue over the trailing window.
	// A non-positive window defaults to 24 hours.
	GetQueueStats(ctx context.Context, windowHours int) (*store.QueueStats, error)
}

const (
	defaultStatsWindowHours = 24
	maxStatsWindowHours     = 24 * 30
)

// jobServiceImpl implements the JobService interface.
type jobServiceImpl struct {
	db       *sql.DB
	jobs     store.JobStore
	validate *validator.Validate
	logger   *slog.Logger
}

// NewJobService creates a new JobService. db may be nil when the store
// manages its own connection; enqueues then skip the explicit
// transaction wrapper.
func NewJobService(db *sql.DB, jobs store.JobStore, logger *slog.Logger) (JobService, error) {
	if jobs == nil {
		return nil, &JobServiceError{
			Operation: "create_service",
			Message:   "job store cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		db:       db,
		jobs:     jobs,
		validate: validator.New(),
		logger:   logger.With("component", "job_service"),
	}, nil
}

// EnqueueJob validates the request, builds the job, and persists it.
// The job only becomes claimable once the write commits.
func (s *jobServiceImpl) EnqueueJob(ctx context.Context, req domain.EnqueueRequest) (*domain.Job, error) {
	if err := s.validate.Struct(req); err != nil {
		s.logger.WarnContext(ctx, "enqueue request failed validation",
			"job_type", req.Type, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	job, err := domain.NewJob(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if s.db != nil {
		err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			return s.jobs.WithTx(tx).EnqueueJob(ctx, job)
		})
	} else {
		err = s.jobs.EnqueueJob(ctx, job)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue job",
			"job_id", job.ID, "job_type", job.Type, "error", err)
		return nil, NewJobServiceError("enqueue_job", "failed to persist job", err)
	}

	s.logger.InfoContext(ctx, "job enqueued",
		"job_id", job.ID,
		"job_type", job.Type,
		"priority", job.Priority,
		"conversation_id", job.ConversationID)

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *jobServiceImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, NewJobServiceError("get_job", "failed to retrieve job", err)
	}
	return job, nil
}

// GetJobLogs retrieves a job's log entries in insertion order.
func (s *jobServiceImpl) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]*domain.JobLog, error) {
	if _, err := s.jobs.GetJob(ctx, jobID); err != nil {
		return nil, NewJobServiceError("get_job_logs", "failed to retrieve job", err)
	}

	logs, err := s.jobs.GetJobLogs(ctx, jobID)
	if err != nil {
		return nil, NewJobServiceError("get_job_logs", "failed to retrieve job logs", err)
	}
	return logs, nil
}

// GetQueueStats summarizes the queue over the trailing window.
func (s *jobServiceImpl) GetQueueStats(ctx context.Context, windowHours int) (*store.QueueStats, error) {
	if windowHours <= 0 {
		windowHours = defaultStatsWindowHours
	}
	if windowHours > maxStatsWindowHours {
		windowHours = maxStatsWindowHours
	}

	stats, err := s.jobs.GetQueueStats(ctx, windowHours)
	if err != nil {
		return nil, NewJobServiceError("get_queue_stats", "failed to compute stats", err)
	}
	return stats, nil
}
