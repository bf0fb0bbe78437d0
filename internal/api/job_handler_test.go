package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/novaq/internal/domain"
	"github.com/phrazzld/novaq/internal/service"
	"github.com/phrazzld/novaq/internal/store"
)

// stubJobService returns canned responses for handler tests.
type stubJobService struct {
	job        *domain.Job
	logs       []*domain.JobLog
	stats      *store.QueueStats
	enqueueErr error
	getErr     error
}

func (s *stubJobService) EnqueueJob(ctx context.Context, req domain.EnqueueRequest) (*domain.Job, error) {
	if s.enqueueErr != nil {
		return nil, s.enqueueErr
	}
	job, err := domain.NewJob(req)
	if err != nil {
		return nil, err
	}
	s.job = job
	return job, nil
}

func (s *stubJobService) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.job, nil
}

func (s *stubJobService) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]*domain.JobLog, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.logs, nil
}

func (s *stubJobService) GetQueueStats(ctx context.Context, windowHours int) (*store.QueueStats, error) {
	if s.stats != nil {
		return s.stats, nil
	}
	return &store.QueueStats{WindowHours: windowHours, GeneratedAt: time.Now().UTC()}, nil
}

func handlerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func jobRouter(svc service.JobService) http.Handler {
	handler := NewJobHandler(svc, handlerTestLogger())
	r := chi.NewRouter()
	r.Post("/api/jobs", handler.CreateJob)
	r.Get("/api/jobs/stats", handler.GetStats)
	r.Get("/api/jobs/{id}", handler.GetJob)
	r.Get("/api/jobs/{id}/logs", handler.GetJobLogs)
	return r
}

func TestCreateJobReturnsAccepted(t *testing.T) {
	svc := &stubJobService{}
	router := jobRouter(svc)

	body := `{"type":"droid_exec","payload":{"prompt":"hello"},"conversation_id":"conv-9"}`
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var job domain.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, domain.JobTypeDroidExec, job.Type)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, "conv-9", job.ConversationID)
}

func TestCreateJobRejectsMalformedBody(t *testing.T) {
	router := jobRouter(&stubJobService{})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"type":`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateJobMapsValidationError(t *testing.T) {
	svc := &stubJobService{enqueueErr: service.ErrInvalidRequest}
	router := jobRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"type":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request")
}

func TestGetJobNotFound(t *testing.T) {
	svc := &stubJobService{getErr: service.ErrJobNotFound}
	router := jobRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Job not found")
}

func TestGetJobRejectsBadID(t *testing.T) {
	router := jobRouter(&stubJobService{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobInternalErrorIsSanitized(t *testing.T) {
	svc := &stubJobService{getErr: errors.New("pgx: connect to postgres://u:pw@host failed")}
	router := jobRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pgx")
	assert.NotContains(t, rec.Body.String(), "pw@host")
}

func TestGetJobLogsReturnsEmptyArray(t *testing.T) {
	svc := &stubJobService{}
	job, err := domain.NewJob(domain.EnqueueRequest{Type: "echo"})
	require.NoError(t, err)
	svc.job = job

	router := jobRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID.String()+"/logs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestGetStatsParsesWindow(t *testing.T) {
	router := jobRouter(&stubJobService{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/stats?window_hours=48", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats store.QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 48, stats.WindowHours)
}

func TestGetStatsRejectsBadWindow(t *testing.T) {
	router := jobRouter(&stubJobService{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/stats?window_hours=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
