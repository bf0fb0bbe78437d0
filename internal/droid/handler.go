package droid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/novaq/internal/domain"
	"github.com/phrazzld/novaq/internal/worker"
)

// execPayload is the expected job payload for droid_exec and
// nova_mission jobs.
type execPayload struct {
	Prompt     string `json:"prompt"`
	WorkingDir string `json:"working_dir"`
	SessionID  string `json:"session_id"`
	Agent      string `json:"agent"`
	Mission    string `json:"mission"`
}

// execResult is the structured outcome persisted with the job.
type execResult struct {
	FinalMessage string `json:"final_message"`
	SessionID    string `json:"session_id,omitempty"`
	Chunks       int    `json:"chunks"`
	DurationMs   int64  `json:"duration_ms"`
}

// NewExecHandler returns the handler for droid_exec and nova_mission
// jobs. It streams chunks from the client, reports phase-change
// progress, and derives the final user-facing message from the stream.
func NewExecHandler(client Client, log *slog.Logger) worker.Handler {
	log = log.With("component", "droid_handler")

	return func(ctx context.Context, job *domain.Job, progress worker.ProgressFunc) (*worker.Result, error) {
		payload, err := decodePayload(job)
		if err != nil {
			return nil, worker.NonRetryable(err)
		}

		started := time.Now()
		chunks, err := client.SendQuery(ctx, Query{
			Prompt:     payload.Prompt,
			WorkingDir: payload.WorkingDir,
			SessionID:  payload.SessionID,
		})
		if err != nil {
			return nil, fmt.Errorf("start execution: %w", err)
		}

		tracker := newPhaseTracker()
		if name, percent, ok := tracker.Observe("starting"); ok {
			progress(percent, "execution started", name)
		}

		var lastAssistant string
		var systemParts []string
		sessionID := payload.SessionID
		count := 0
		sawErrorIndicator := false

		for chunk := range chunks {
			if chunk.Err != nil {
				return nil, fmt.Errorf("execution stream: %w", chunk.Err)
			}
			count++

			if chunk.SessionID != "" {
				sessionID = chunk.SessionID
			}

			switch chunk.Type {
			case ChunkAssistant, ChunkResult:
				// Assistant output is always a final-message candidate,
				// even when it talks about an error.
				if strings.TrimSpace(chunk.Content) != "" {
					lastAssistant = chunk.Content
				}
			case ChunkSystem:
				// System diagnostics flag failure but never become the
				// final message themselves.
				if hasErrorIndicator(chunk.Content) {
					sawErrorIndicator = true
				} else if strings.TrimSpace(chunk.Content) != "" {
					systemParts = append(systemParts, chunk.Content)
				}
			}

			if name, percent, ok := tracker.Observe(chunk.Content); ok {
				progress(percent, summarize(chunk.Content), name)
			}

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		final := strings.TrimSpace(lastAssistant)
		if final == "" {
			final = strings.TrimSpace(strings.Join(systemParts, "\n"))
		}
		if final == "" && sawErrorIndicator {
			return nil, errors.New("execution produced no output and reported an error")
		}

		duration := time.Since(started)
		log.Debug("execution stream finished",
			"job_id", job.ID, "chunks", count, "duration", duration)

		resultJSON, err := json.Marshal(execResult{
			FinalMessage: final,
			SessionID:    sessionID,
			Chunks:       count,
			DurationMs:   duration.Milliseconds(),
		})
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}

		return &worker.Result{
			Result:       resultJSON,
			FinalMessage: final,
			DurationMs:   duration.Milliseconds(),
		}, nil
	}
}

// decodePayload parses and validates the job payload. For nova_mission
// jobs without an explicit prompt, the mission text is the prompt.
func decodePayload(job *domain.Job) (*execPayload, error) {
	if len(job.Payload) == 0 {
		return nil, errors.New("job payload is empty")
	}

	var payload execPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}

	if strings.TrimSpace(payload.Prompt) == "" && job.Type == domain.JobTypeNovaMission {
		payload.Prompt = payload.Mission
	}
	if strings.TrimSpace(payload.Prompt) == "" {
		return nil, errors.New("job payload has no prompt")
	}

	return &payload, nil
}

// hasErrorIndicator reports whether streamed text signals a failed
// execution. Heuristic only; it matters when the stream ends with no
// usable output.
func hasErrorIndicator(text string) bool {
	lowered := strings.ToLower(text)
	for _, indicator := range []string{"error:", "fatal:", "execution failed", "panic:"} {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}

// summarize trims chunk text to a single short line for progress
// messages.
func summarize(text string) string {
	line := strings.TrimSpace(text)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	const maxLen = 120
	if len(line) > maxLen {
		line = line[:maxLen-3] + "..."
	}
	return line
}
