package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/novaq/internal/domain"
	"github.com/phrazzld/novaq/internal/platform/logger"
	"github.com/phrazzld/novaq/internal/store"
)

// jobColumns is the SELECT/RETURNING column list shared by every query
// that loads a full job row.
const jobColumns = `id, type, status, priority, payload, result, error_message,
	attempts, max_attempts, retry_after, timeout_seconds,
	conversation_id, session_id, agent, user_identifier, metadata,
	created_at, started_at, completed_at`

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

// Compile-time check that PostgresJobStore satisfies store.JobStore.
var _ store.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{
		db: db,
	}
}

// WithTx returns a new JobStore instance that uses the provided transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx}
}

// EnqueueJob persists a new pending job.
func (s *PostgresJobStore) EnqueueJob(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, type, status, priority, payload, max_attempts,
			timeout_seconds, conversation_id, session_id, agent,
			user_identifier, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Type,
		job.Status,
		job.Priority,
		nullableJSON(job.Payload),
		job.MaxAttempts,
		job.TimeoutSeconds,
		job.ConversationID,
		job.SessionID,
		job.Agent,
		job.UserIdentifier,
		nullableJSON(job.Metadata),
		job.CreatedAt,
	)
	if err != nil {
		log.Error("failed to enqueue job",
			"job_id", job.ID,
			"job_type", job.Type,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ClaimNextJob atomically claims the highest-priority, oldest eligible
// pending job. The inner SELECT takes a row lock and skips rows locked
// by concurrent claimers, so two workers can never claim the same job:
// the losing claimer simply sees the next eligible row or none.
func (s *PostgresJobStore) ClaimNextJob(ctx context.Context, allowedTypes []string) (*domain.Job, error) {
	query := fmt.Sprintf(`
		UPDATE jobs SET
			status = $1,
			started_at = now(),
			attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $2
			  AND (retry_after IS NULL OR retry_after <= now())
			  AND ($3 OR type = ANY($4))
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING %s`, jobColumns)

	anyType := len(allowedTypes) == 0
	if allowedTypes == nil {
		allowedTypes = []string{}
	}

	row := s.db.QueryRowContext(ctx, query,
		domain.JobStatusRunning,
		domain.JobStatusPending,
		anyType,
		allowedTypes,
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoJob
		}
		return nil, MapError(err)
	}

	return job, nil
}

// CompleteJob transitions a running job to its terminal completed state.
func (s *PostgresJobStore) CompleteJob(ctx context.Context, jobID uuid.UUID, result json.RawMessage) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs SET
			status = $1,
			result = $2,
			error_message = '',
			completed_at = now()
		WHERE id = $3 AND status = $4
	`

	res, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		nullableJSON(result),
		jobID,
		domain.JobStatusRunning,
	)
	if err != nil {
		log.Error("failed to complete job", "job_id", jobID, "error", err)
		return MapError(err)
	}

	return s.checkRunningGuard(ctx, res, jobID)
}

// FailJob records a failed attempt. The read and the conditional write
// run in one transaction with the row locked, so the retry decision is
// always made against the attempt count it updates. The status guard
// keeps terminal jobs immutable; only the worker holding the claim
// mutates a running row.
func (s *PostgresJobStore) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, retryable bool) error {
	if db, ok := s.db.(*sql.DB); ok {
		return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			txStore := &PostgresJobStore{db: tx}
			return txStore.failJobLocked(ctx, jobID, errMsg, retryable)
		})
	}
	return s.failJobLocked(ctx, jobID, errMsg, retryable)
}

// failJobLocked runs the two-statement failure path. The caller must
// supply a transaction-scoped store so the FOR UPDATE lock holds until
// the write commits.
func (s *PostgresJobStore) failJobLocked(ctx context.Context, jobID uuid.UUID, errMsg string, retryable bool) error {
	log := logger.FromContext(ctx)

	var attempts, maxAttempts int
	selectQuery := `SELECT attempts, max_attempts FROM jobs WHERE id = $1 AND status = $2 FOR UPDATE`
	err := s.db.QueryRowContext(ctx, selectQuery, jobID, domain.JobStatusRunning).
		Scan(&attempts, &maxAttempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.classifyMissingRunning(ctx, jobID)
		}
		return MapError(err)
	}

	var res sql.Result
	if retryable && attempts < maxAttempts {
		// Revert to pending with backoff; the job becomes claimable
		// again once retry_after passes. retry_after grows with the
		// attempt count, so it is monotonically increasing per job.
		retryAfter := time.Now().UTC().Add(domain.RetryBackoff(attempts))
		requeueQuery := `
			UPDATE jobs SET
				status = $1,
				error_message = $2,
				retry_after = $3,
				started_at = NULL
			WHERE id = $4 AND status = $5
		`
		res, err = s.db.ExecContext(ctx, requeueQuery,
			domain.JobStatusPending,
			errMsg,
			retryAfter,
			jobID,
			domain.JobStatusRunning,
		)
		if err == nil {
			log.Info("job failed, scheduled for retry",
				"job_id", jobID,
				"attempts", attempts,
				"max_attempts", maxAttempts,
				"retry_after", retryAfter)
		}
	} else {
		failQuery := `
			UPDATE jobs SET
				status = $1,
				error_message = $2,
				completed_at = now()
			WHERE id = $3 AND status = $4
		`
		res, err = s.db.ExecContext(ctx, failQuery,
			domain.JobStatusFailed,
			errMsg,
			jobID,
			domain.JobStatusRunning,
		)
		if err == nil {
			log.Info("job failed permanently",
				"job_id", jobID,
				"attempts", attempts,
				"retryable", retryable)
		}
	}
	if err != nil {
		log.Error("failed to record job failure", "job_id", jobID, "error", err)
		return MapError(err)
	}

	return s.checkRunningGuard(ctx, res, jobID)
}

// AppendJobLog inserts an append-only log entry for the job.
func (s *PostgresJobStore) AppendJobLog(ctx context.Context, jobID uuid.UUID, level domain.JobLogLevel, message string, data json.RawMessage) error {
	query := `
		INSERT INTO job_logs (job_id, level, message, data, created_at)
		VALUES ($1, $2, $3, $4, now())
	`

	_, err := s.db.ExecContext(ctx, query, jobID, level, message, nullableJSON(data))
	if err != nil {
		return MapError(err)
	}

	return nil
}

// GetJob retrieves a job by ID.
func (s *PostgresJobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1`, jobColumns)

	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		return nil, MapError(err)
	}

	return job, nil
}

// GetJobLogs returns a job's log entries ordered by insertion time.
func (s *PostgresJobStore) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]*domain.JobLog, error) {
	query := `
		SELECT id, job_id, level, message, data, created_at
		FROM job_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*domain.JobLog
	for rows.Next() {
		var entry domain.JobLog
		var data []byte
		if err := rows.Scan(&entry.ID, &entry.JobID, &entry.Level, &entry.Message, &data, &entry.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		entry.Data = data
		logs = append(logs, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return logs, nil
}

// GetQueueStats returns job counts by status among jobs created in the
// trailing window.
func (s *PostgresJobStore) GetQueueStats(ctx context.Context, windowHours int) (*store.QueueStats, error) {
	if windowHours <= 0 {
		windowHours = 24
	}

	query := `
		SELECT status, count(*)
		FROM jobs
		WHERE created_at >= now() - ($1 * interval '1 hour')
		GROUP BY status
	`

	rows, err := s.db.QueryContext(ctx, query, windowHours)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	stats := &store.QueueStats{
		WindowHours: windowHours,
		GeneratedAt: time.Now().UTC(),
	}

	for rows.Next() {
		var status domain.JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, MapError(err)
		}

		switch status {
		case domain.JobStatusPending:
			stats.Pending = count
		case domain.JobStatusRunning:
			stats.Running = count
		case domain.JobStatusCompleted:
			stats.Completed = count
		case domain.JobStatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return stats, nil
}

// checkRunningGuard distinguishes "job does not exist" from "job is no
// longer running" when a guarded update touched zero rows.
func (s *PostgresJobStore) checkRunningGuard(ctx context.Context, res sql.Result, jobID uuid.UUID) error {
	if err := CheckRowsAffected(res, "job"); err != nil {
		return s.classifyMissingRunning(ctx, jobID)
	}
	return nil
}

// classifyMissingRunning reports why a running-state guard failed.
func (s *PostgresJobStore) classifyMissingRunning(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return store.ErrTerminalJob
	}
	return fmt.Errorf("%w: job %s is %s, not running", store.ErrInvalidEntity, jobID, job.Status)
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one full job row using the jobColumns ordering.
func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var payload, result, metadata []byte
	var errorMessage sql.NullString
	var retryAfter, startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.Priority,
		&payload,
		&result,
		&errorMessage,
		&job.Attempts,
		&job.MaxAttempts,
		&retryAfter,
		&job.TimeoutSeconds,
		&job.ConversationID,
		&job.SessionID,
		&job.Agent,
		&job.UserIdentifier,
		&metadata,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Payload = payload
	job.Result = result
	job.Metadata = metadata
	job.ErrorMessage = errorMessage.String
	if retryAfter.Valid {
		t := retryAfter.Time
		job.RetryAfter = &t
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}

// nullableJSON stores empty JSON payloads as NULL rather than empty strings,
// which jsonb columns would reject.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
