package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/novaq/internal/domain"
	"github.com/phrazzld/novaq/internal/events"
	"github.com/phrazzld/novaq/internal/platform/logger"
	"github.com/phrazzld/novaq/internal/store"
)

// ErrAlreadyRunning is returned by Start when the worker is running.
var ErrAlreadyRunning = errors.New("worker is already running")

// Config holds configuration for the job worker.
type Config struct {
	// PollInterval is the delay between claim attempts.
	PollInterval time.Duration

	// MaxConcurrent bounds the number of simultaneously active jobs.
	MaxConcurrent int

	// JobTypes restricts which job types this worker claims.
	// Empty means all types.
	JobTypes []string

	// ShutdownGrace is how long Stop waits for active executions
	// before cancelling and failing them.
	ShutdownGrace time.Duration

	// Verbose enables per-claim-attempt debug logging.
	Verbose bool
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:  time.Second,
		MaxConcurrent: 2,
		ShutdownGrace: 30 * time.Second,
	}
}

// execution tracks one in-flight job.
type execution struct {
	job    *domain.Job
	cancel context.CancelFunc

	// abandoned is set when shutdown force-fails the job; the
	// execution goroutine then skips its own persistence and events.
	abandoned bool

	// lastPercent enforces monotonic progress within the job.
	lastPercent int

	mu sync.Mutex
}

// JobWorker polls the store for eligible jobs and executes them against
// registered handlers. One instance per process; see the package docs.
type JobWorker struct {
	store   store.JobStore
	emitter events.EventEmitter
	config  Config
	logger  *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	mu         sync.Mutex
	running    bool
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
	active     map[uuid.UUID]*execution

	execWG sync.WaitGroup
}

// NewJobWorker creates a new JobWorker. Handlers are registered
// separately before Start.
func NewJobWorker(jobStore store.JobStore, emitter events.EventEmitter, config Config, log *slog.Logger) *JobWorker {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}

	return &JobWorker{
		store:    jobStore,
		emitter:  emitter,
		config:   config,
		logger:   log.With("component", "job_worker"),
		handlers: make(map[string]Handler),
		active:   make(map[uuid.UUID]*execution),
	}
}

// RegisterHandler registers the handler for a job type, replacing any
// previous registration.
func (w *JobWorker) RegisterHandler(jobType string, handler Handler) {
	w.handlersMu.Lock()
	defer w.handlersMu.Unlock()
	w.handlers[jobType] = handler
	w.logger.Debug("registered job handler", "job_type", jobType)
}

// Start launches the poll loop. Returns ErrAlreadyRunning if the worker
// is already started.
func (w *JobWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.running = true
	w.cancelLoop = cancel
	w.loopDone = make(chan struct{})

	go w.pollLoop(ctx)

	w.logger.Info("worker started",
		"poll_interval", w.config.PollInterval,
		"max_concurrent", w.config.MaxConcurrent,
		"job_types", w.config.JobTypes)

	return nil
}

// Stop shuts the worker down: the poll loop stops immediately, active
// executions get up to ShutdownGrace to finish, and anything still
// running after that is cancelled and recorded as a non-retryable
// failure. Stop returns within the grace period plus bounded overhead.
func (w *JobWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancelLoop()
	loopDone := w.loopDone
	w.mu.Unlock()

	<-loopDone

	finished := make(chan struct{})
	go func() {
		w.execWG.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		w.logger.Info("worker stopped, all executions finished")
		return
	case <-time.After(w.config.ShutdownGrace):
	}

	// Grace expired: force-fail what is left. The underlying external
	// process may continue orphaned; that is a documented limitation.
	w.mu.Lock()
	remaining := make([]*execution, 0, len(w.active))
	for _, exec := range w.active {
		remaining = append(remaining, exec)
	}
	w.mu.Unlock()

	ctx := context.Background()
	for _, exec := range remaining {
		exec.mu.Lock()
		exec.abandoned = true
		exec.mu.Unlock()

		err := w.store.FailJob(ctx, exec.job.ID, "worker shutdown", false)
		if err != nil && !errors.Is(err, store.ErrTerminalJob) {
			w.logger.Error("failed to record shutdown failure",
				"job_id", exec.job.ID, "error", err)
		}
		if err == nil {
			w.emitter.Emit(ctx, &events.JobEvent{
				Type:  events.JobFailed,
				Job:   exec.job,
				Error: "worker shutdown",
				At:    time.Now().UTC(),
			})
		}

		exec.cancel()
	}

	w.logger.Warn("worker stopped with executions cancelled",
		"cancelled", len(remaining))
}

// IsRunning reports whether the poll loop is active.
func (w *JobWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// ActiveJobCount returns the number of currently executing jobs.
func (w *JobWorker) ActiveJobCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.active)
}

// pollLoop attempts one claim per tick whenever capacity allows.
// Store errors are logged and never stop the loop.
func (w *JobWorker) pollLoop(ctx context.Context) {
	defer close(w.loopDone)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("poll loop stopping")
			return
		case <-ticker.C:
			w.tryClaim(ctx)
		}
	}
}

// tryClaim claims at most one job and launches its execution.
func (w *JobWorker) tryClaim(ctx context.Context) {
	if w.ActiveJobCount() >= w.config.MaxConcurrent {
		return
	}

	job, err := w.store.ClaimNextJob(ctx, w.config.JobTypes)
	if err != nil {
		if errors.Is(err, store.ErrNoJob) {
			if w.config.Verbose {
				w.logger.Debug("no claimable job")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("claim attempt failed", "error", err)
		return
	}

	if w.config.Verbose {
		w.logger.Debug("claimed job",
			"job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	}

	w.launch(job)
}

// launch registers the job as active and starts its execution goroutine.
func (w *JobWorker) launch(job *domain.Job) {
	var execCtx context.Context
	var cancel context.CancelFunc
	if timeout := job.Timeout(); timeout > 0 {
		execCtx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		execCtx, cancel = context.WithCancel(context.Background())
	}

	exec := &execution{job: job, cancel: cancel}

	w.mu.Lock()
	w.active[job.ID] = exec
	w.mu.Unlock()

	w.execWG.Add(1)
	go func() {
		defer w.execWG.Done()
		defer cancel()
		defer func() {
			w.mu.Lock()
			delete(w.active, job.ID)
			w.mu.Unlock()
		}()

		w.execute(execCtx, exec)
	}()
}

// execute runs one claimed job end to end: handler resolution,
// execution with panic containment, outcome persistence, and events.
// Errors here are contained to this job and never affect others.
func (w *JobWorker) execute(ctx context.Context, exec *execution) {
	job := exec.job
	log := w.logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	ctx = logger.WithLogger(ctx, log)

	// Outcome persistence must survive the execution context expiring,
	// which is exactly what happens on a timeout.
	persistCtx := logger.WithLogger(context.Background(), log)

	agent, mission := presentationHints(job)

	w.appendLog(ctx, job.ID, domain.JobLogLevelInfo, "execution started",
		json.RawMessage(fmt.Sprintf(`{"attempt":%d,"max_attempts":%d}`, job.Attempts, job.MaxAttempts)))

	w.emitter.Emit(ctx, &events.JobEvent{
		Type:    events.JobStarted,
		Job:     job,
		Agent:   agent,
		Mission: mission,
		At:      time.Now().UTC(),
	})

	w.handlersMu.RLock()
	handler := w.handlers[job.Type]
	w.handlersMu.RUnlock()

	startedAt := time.Now()

	if handler == nil {
		log.Error("no handler registered for job type")
		w.finishFailure(persistCtx, exec, agent, mission,
			fmt.Sprintf("%v: %s", ErrHandlerNotFound, job.Type), false, startedAt)
		return
	}

	progress := func(percent int, message, phase string) {
		w.reportProgress(ctx, exec, agent, mission, percent, message, phase)
	}

	result, err := w.runHandler(ctx, handler, job, progress)
	if err != nil {
		errMsg := err.Error()
		if ctx.Err() != nil && job.Timeout() > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			errMsg = fmt.Sprintf("execution timed out after %ds: %v", job.TimeoutSeconds, err)
		}
		retryable := !errors.Is(err, ErrNonRetryable)
		log.Error("job execution failed", "error", err, "retryable", retryable)
		w.finishFailure(persistCtx, exec, agent, mission, errMsg, retryable, startedAt)
		return
	}

	w.finishSuccess(persistCtx, exec, agent, mission, result, startedAt)
}

// runHandler invokes the handler, converting a panic into a retryable
// error at the per-job boundary so a broken handler cannot crash the
// worker.
func (w *JobWorker) runHandler(ctx context.Context, handler Handler, job *domain.Job, progress ProgressFunc) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
			result = nil
		}
	}()

	return handler(ctx, job, progress)
}

// reportProgress clamps and monotonizes percent, then emits a progress
// event. A stale (lower) percent is raised to the prior value rather
// than regressing.
func (w *JobWorker) reportProgress(ctx context.Context, exec *execution, agent, mission string, percent int, message, phase string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	exec.mu.Lock()
	if percent < exec.lastPercent {
		percent = exec.lastPercent
	}
	exec.lastPercent = percent
	abandoned := exec.abandoned
	exec.mu.Unlock()

	if abandoned {
		return
	}

	w.emitter.Emit(ctx, &events.JobEvent{
		Type:    events.JobProgress,
		Job:     exec.job,
		Percent: percent,
		Message: message,
		Phase:   phase,
		Agent:   agent,
		Mission: mission,
		At:      time.Now().UTC(),
	})
}

// finishSuccess persists the completed state and emits JobCompleted.
func (w *JobWorker) finishSuccess(ctx context.Context, exec *execution, agent, mission string, result *Result, startedAt time.Time) {
	job := exec.job
	log := logger.FromContext(ctx)

	exec.mu.Lock()
	abandoned := exec.abandoned
	exec.mu.Unlock()
	if abandoned {
		return
	}

	var resultJSON json.RawMessage
	finalMessage := ""
	duration := time.Since(startedAt)
	if result != nil {
		resultJSON = result.Result
		finalMessage = result.FinalMessage
		if result.DurationMs > 0 {
			duration = time.Duration(result.DurationMs) * time.Millisecond
		}
	}

	if err := w.store.CompleteJob(ctx, job.ID, resultJSON); err != nil {
		if errors.Is(err, store.ErrTerminalJob) {
			// Shutdown force-failed the job first; its outcome stands.
			log.Warn("job finished after being force-failed")
			return
		}
		log.Error("failed to persist job completion", "error", err)
		return
	}

	w.appendLog(ctx, job.ID, domain.JobLogLevelInfo, "execution completed",
		json.RawMessage(fmt.Sprintf(`{"duration_ms":%d}`, duration.Milliseconds())))

	log.Info("job completed", "duration", duration)

	w.emitter.Emit(ctx, &events.JobEvent{
		Type:         events.JobCompleted,
		Job:          job,
		Result:       resultJSON,
		FinalMessage: finalMessage,
		Agent:        agent,
		Mission:      mission,
		Duration:     duration,
		At:           time.Now().UTC(),
	})
}

// finishFailure persists the failure (retry or terminal) and emits
// JobFailed.
func (w *JobWorker) finishFailure(ctx context.Context, exec *execution, agent, mission, errMsg string, retryable bool, startedAt time.Time) {
	job := exec.job
	log := logger.FromContext(ctx)

	exec.mu.Lock()
	abandoned := exec.abandoned
	exec.mu.Unlock()
	if abandoned {
		return
	}

	willRetry := retryable && job.Attempts < job.MaxAttempts

	if err := w.store.FailJob(ctx, job.ID, errMsg, retryable); err != nil {
		if errors.Is(err, store.ErrTerminalJob) {
			log.Warn("job failed after being force-failed")
			return
		}
		log.Error("failed to persist job failure", "error", err)
		return
	}

	level := domain.JobLogLevelWarn
	if !willRetry {
		level = domain.JobLogLevelError
	}
	w.appendLog(ctx, job.ID, level, "execution failed",
		json.RawMessage(fmt.Sprintf(`{"error":%q,"will_retry":%t}`, errMsg, willRetry)))

	w.emitter.Emit(ctx, &events.JobEvent{
		Type:      events.JobFailed,
		Job:       job,
		Error:     errMsg,
		WillRetry: willRetry,
		Agent:     agent,
		Mission:   mission,
		Duration:  time.Since(startedAt),
		At:        time.Now().UTC(),
	})
}

// appendLog writes a job log entry best-effort; log persistence must
// never block or fail an execution.
func (w *JobWorker) appendLog(ctx context.Context, jobID uuid.UUID, level domain.JobLogLevel, message string, data json.RawMessage) {
	if err := w.store.AppendJobLog(ctx, jobID, level, message, data); err != nil {
		logger.FromContext(ctx).Warn("failed to append job log",
			"job_id", jobID, "error", err)
	}
}

// presentationHints extracts the agent and mission labels used in
// user-facing notifications. The payload is consulted best-effort; a
// malformed payload just yields empty hints.
func presentationHints(job *domain.Job) (agent, mission string) {
	agent = job.Agent

	if len(job.Payload) > 0 {
		var hints struct {
			Agent   string `json:"agent"`
			Mission string `json:"mission"`
		}
		if err := json.Unmarshal(job.Payload, &hints); err == nil {
			if agent == "" {
				agent = hints.Agent
			}
			mission = hints.Mission
		}
	}

	return agent, mission
}
