package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/novaq/internal/api/shared"
	"github.com/phrazzld/novaq/internal/lock"
)

// WorkerStatus exposes the worker state the API reports.
type WorkerStatus interface {
	IsRunning() bool
	ActiveJobCount() int
}

// WorkerStatusResponse is the payload for GET /api/worker.
type WorkerStatusResponse struct {
	Running       bool       `json:"running"`
	ActiveJobs    int        `json:"active_jobs"`
	MaxConcurrent int        `json:"max_concurrent"`
	Locks         lock.Stats `json:"locks"`
}

// WorkerHandler serves worker observability endpoints.
type WorkerHandler struct {
	worker        WorkerStatus
	locks         *lock.Manager
	maxConcurrent int
	logger        *slog.Logger
}

// NewWorkerHandler creates a WorkerHandler.
func NewWorkerHandler(worker WorkerStatus, locks *lock.Manager, maxConcurrent int, logger *slog.Logger) *WorkerHandler {
	return &WorkerHandler{
		worker:        worker,
		locks:         locks,
		maxConcurrent: maxConcurrent,
		logger:        logger.With("component", "worker_handler"),
	}
}

// GetStatus handles GET /api/worker.
func (h *WorkerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, WorkerStatusResponse{
		Running:       h.worker.IsRunning(),
		ActiveJobs:    h.worker.ActiveJobCount(),
		MaxConcurrent: h.maxConcurrent,
		Locks:         h.locks.Stats(),
	})
}
