package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/novaq/internal/events"
)

// Config controls progress throttling.
type Config struct {
	// MinProgressInterval is the minimum time between progress
	// deliveries for one job.
	MinProgressInterval time.Duration

	// ProgressPercentStep delivers a progress update early when percent
	// advanced at least this much since the last delivery.
	ProgressPercentStep int
}

// jobState tracks throttling per active job.
type jobState struct {
	lastSentAt      time.Time
	lastSentPercent int
}

// Notifier converts job events into chat messages, throttling progress
// so long executions stay visible without flooding the conversation.
// Started and terminal events always deliver. Sink failures are logged
// and swallowed; notification is best-effort and must never affect job
// outcomes.
type Notifier struct {
	sink   MessageSink
	config Config
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state map[uuid.UUID]*jobState
}

// NewNotifier creates a Notifier delivering through sink.
func NewNotifier(sink MessageSink, config Config, logger *slog.Logger) *Notifier {
	if config.MinProgressInterval <= 0 {
		config.MinProgressInterval = 30 * time.Second
	}
	if config.ProgressPercentStep <= 0 {
		config.ProgressPercentStep = 10
	}

	return &Notifier{
		sink:   sink,
		config: config,
		logger: logger.With("component", "notifier"),
		now:    time.Now,
		state:  make(map[uuid.UUID]*jobState),
	}
}

// HandleEvent implements events.EventHandler.
func (n *Notifier) HandleEvent(ctx context.Context, event *events.JobEvent) error {
	if event.Job == nil || event.Job.ConversationID == "" {
		return nil
	}

	switch event.Type {
	case events.JobStarted:
		n.deliver(ctx, event, startedText(event))
		n.setState(event.Job.ID, &jobState{lastSentAt: n.now()})

	case events.JobProgress:
		if !n.shouldDeliverProgress(event) {
			return nil
		}
		n.deliver(ctx, event, progressText(event))

	case events.JobCompleted:
		n.deliver(ctx, event, completedText(event))
		n.clearState(event.Job.ID)

	case events.JobFailed:
		n.deliver(ctx, event, failedText(event))
		if !event.WillRetry {
			n.clearState(event.Job.ID)
		}
	}

	return nil
}

// shouldDeliverProgress applies the throttle and, when it decides to
// deliver, records the delivery.
func (n *Notifier) shouldDeliverProgress(event *events.JobEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	st := n.state[event.Job.ID]
	if st == nil {
		st = &jobState{}
		n.state[event.Job.ID] = st
	}

	now := n.now()
	intervalElapsed := now.Sub(st.lastSentAt) >= n.config.MinProgressInterval
	percentAdvanced := event.Percent-st.lastSentPercent >= n.config.ProgressPercentStep

	if !intervalElapsed && !percentAdvanced {
		return false
	}

	st.lastSentAt = now
	st.lastSentPercent = event.Percent
	return true
}

func (n *Notifier) setState(jobID uuid.UUID, st *jobState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state[jobID] = st
}

func (n *Notifier) clearState(jobID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.state, jobID)
}

// deliver sends text to the job's conversation, logging and swallowing
// sink errors.
func (n *Notifier) deliver(ctx context.Context, event *events.JobEvent, text string) {
	if err := n.sink.SendMessage(ctx, event.Job.ConversationID, text); err != nil {
		n.logger.WarnContext(ctx, "failed to deliver notification",
			"job_id", event.Job.ID,
			"conversation_id", event.Job.ConversationID,
			"event_type", event.Type,
			"error", err)
	}
}

// subject names what the job is doing, for message templates.
func subject(event *events.JobEvent) string {
	if event.Mission != "" {
		return event.Mission
	}
	return "your request"
}

func agentName(event *events.JobEvent) string {
	if event.Agent != "" {
		return event.Agent
	}
	return "The assistant"
}

func startedText(event *events.JobEvent) string {
	return fmt.Sprintf("%s started working on %s.", agentName(event), subject(event))
}

func progressText(event *events.JobEvent) string {
	var b strings.Builder
	if event.Phase != "" {
		b.WriteString(strings.ToUpper(event.Phase[:1]) + event.Phase[1:])
	} else {
		b.WriteString("Progress")
	}
	if event.Message != "" {
		b.WriteString(": ")
		b.WriteString(event.Message)
	}
	fmt.Fprintf(&b, " (%d%%)", event.Percent)
	return b.String()
}

func completedText(event *events.JobEvent) string {
	// A handler-provided final message goes out verbatim.
	if event.FinalMessage != "" {
		return event.FinalMessage
	}
	return fmt.Sprintf("Done. Finished %s in %s.", subject(event), formatDuration(event.Duration))
}

func failedText(event *events.JobEvent) string {
	text := fmt.Sprintf("Something went wrong with %s: %s.", subject(event), event.Error)
	if event.WillRetry {
		return text + " Retrying automatically."
	}
	return text + " You can send the request again to retry."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "under a second"
	}
	return d.Round(time.Second).String()
}
