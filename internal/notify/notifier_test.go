package notify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/novaq/internal/domain"
	"github.com/phrazzld/novaq/internal/events"
)

// recordingSink captures sent messages.
type recordingSink struct {
	mu       sync.Mutex
	messages []sentMessage
	err      error
}

type sentMessage struct {
	conversationID string
	text           string
}

func (s *recordingSink) SendMessage(ctx context.Context, conversationID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{conversationID, text})
	return s.err
}

func (s *recordingSink) sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func notifyJob(t *testing.T) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(domain.EnqueueRequest{
		Type:           domain.JobTypeDroidExec,
		ConversationID: "conv-1",
	})
	require.NoError(t, err)
	return job
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestNotifier(sink MessageSink, config Config) (*Notifier, *testClock) {
	n := NewNotifier(sink, config, testLogger())
	clock := newTestClock()
	n.now = clock.Now
	return n, clock
}

func TestStartedDeliversImmediately(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink, Config{})

	job := notifyJob(t)
	err := n.HandleEvent(context.Background(), &events.JobEvent{
		Type:    events.JobStarted,
		Job:     job,
		Agent:   "builder-droid",
		Mission: "the dependency audit",
	})
	require.NoError(t, err)

	sent := sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "conv-1", sent[0].conversationID)
	assert.Equal(t, "builder-droid started working on the dependency audit.", sent[0].text)
}

func TestProgressThrottling(t *testing.T) {
	sink := &recordingSink{}
	n, clock := newTestNotifier(sink, Config{
		MinProgressInterval: 30 * time.Second,
		ProgressPercentStep: 10,
	})

	job := notifyJob(t)
	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type: events.JobStarted, Job: job,
	}))

	// Progress at 10, 15, 18, 22, 30 percent, one second apart: only
	// the 10 (step reached from 0) and 22 (12 >= 10 past the last
	// delivery) updates go out.
	for _, percent := range []int{10, 15, 18, 22, 30} {
		clock.Advance(time.Second)
		require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
			Type: events.JobProgress, Job: job, Percent: percent, Phase: "building",
		}))
	}

	sent := sink.sent()
	require.Len(t, sent, 3)
	assert.Contains(t, sent[1].text, "(10%)")
	assert.Contains(t, sent[2].text, "(22%)")
}

func TestProgressDeliversAfterInterval(t *testing.T) {
	sink := &recordingSink{}
	n, clock := newTestNotifier(sink, Config{
		MinProgressInterval: 30 * time.Second,
		ProgressPercentStep: 10,
	})

	job := notifyJob(t)
	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type: events.JobStarted, Job: job,
	}))

	// Small advance, below the step threshold.
	clock.Advance(time.Second)
	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type: events.JobProgress, Job: job, Percent: 5,
	}))
	require.Len(t, sink.sent(), 1)

	// Same small advance after the interval elapses must deliver.
	clock.Advance(31 * time.Second)
	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type: events.JobProgress, Job: job, Percent: 7,
	}))
	require.Len(t, sink.sent(), 2)
}

func TestCompletedDeliversFinalMessageVerbatim(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink, Config{})

	job := notifyJob(t)
	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type:         events.JobCompleted,
		Job:          job,
		FinalMessage: "Refactor finished. Three files changed, tests green.",
		Duration:     90 * time.Second,
	}))

	sent := sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Refactor finished. Three files changed, tests green.", sent[0].text)
}

func TestCompletedSynthesizesSummaryWithoutFinalMessage(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink, Config{})

	job := notifyJob(t)
	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type:     events.JobCompleted,
		Job:      job,
		Mission:  "the cleanup",
		Duration: 2 * time.Minute,
	}))

	sent := sink.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].text, "the cleanup")
	assert.Contains(t, sent[0].text, "2m0s")
}

func TestFailedIncludesRecoveryHint(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink, Config{})

	job := notifyJob(t)

	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type: events.JobFailed, Job: job, Error: "upstream timeout", WillRetry: true,
	}))
	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type: events.JobFailed, Job: job, Error: "upstream timeout", WillRetry: false,
	}))

	sent := sink.sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].text, "Retrying automatically")
	assert.Contains(t, sent[1].text, "send the request again")
}

func TestTerminalEventClearsThrottleState(t *testing.T) {
	sink := &recordingSink{}
	n, clock := newTestNotifier(sink, Config{
		MinProgressInterval: 30 * time.Second,
		ProgressPercentStep: 10,
	})

	job := notifyJob(t)
	ctx := context.Background()

	require.NoError(t, n.HandleEvent(ctx, &events.JobEvent{Type: events.JobStarted, Job: job}))
	clock.Advance(time.Second)
	require.NoError(t, n.HandleEvent(ctx, &events.JobEvent{Type: events.JobProgress, Job: job, Percent: 50}))
	require.NoError(t, n.HandleEvent(ctx, &events.JobEvent{Type: events.JobCompleted, Job: job}))

	n.mu.Lock()
	remaining := len(n.state)
	n.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestSinkErrorIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker unavailable")}
	n, _ := newTestNotifier(sink, Config{})

	err := n.HandleEvent(context.Background(), &events.JobEvent{
		Type: events.JobStarted, Job: notifyJob(t),
	})
	assert.NoError(t, err)
}

func TestNoConversationIDMeansNoDelivery(t *testing.T) {
	sink := &recordingSink{}
	n, _ := newTestNotifier(sink, Config{})

	job, err := domain.NewJob(domain.EnqueueRequest{Type: domain.JobTypeDroidExec})
	require.NoError(t, err)

	require.NoError(t, n.HandleEvent(context.Background(), &events.JobEvent{
		Type: events.JobStarted, Job: job,
	}))
	assert.Empty(t, sink.sent())
}
