package events

import (
	"context"
	"log/slog"
	"sync"
)

// defaultQueueSize bounds the dispatch buffer. Events beyond this are
// dropped rather than blocking the execution path.
const defaultQueueSize = 256

// InMemoryEventEmitter is a simple implementation of the EventEmitter
// interface. Events are queued onto a buffered channel and delivered by
// a single dispatcher goroutine, which preserves emission order while
// keeping Emit non-blocking.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	closed   bool
	mu       sync.RWMutex

	queue chan *JobEvent
	done  chan struct{}

	logger *slog.Logger
}

// NewInMemoryEventEmitter creates a new InMemoryEventEmitter and starts
// its dispatcher. Call Close to drain and stop it.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	e := &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		queue:    make(chan *JobEvent, defaultQueueSize),
		done:     make(chan struct{}),
		logger:   logger.With("component", "event_emitter"),
	}

	go e.dispatch()

	return e
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// Emit queues the given event for delivery to all registered handlers.
// Emit never blocks; if the dispatch buffer is full the event is
// dropped with a warning. Notification delivery is best-effort, so a
// dropped event costs a progress update, never job state.
//
// Emit after Close drops the event. A late execution finishing during
// shutdown may still report its outcome; losing that notification must
// never take the process down.
func (e *InMemoryEventEmitter) Emit(ctx context.Context, event *JobEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.logger.Warn("emitter closed, dropping event",
			"event_type", event.Type,
			"job_id", event.Job.ID)
		return
	}

	select {
	case e.queue <- event:
	default:
		e.logger.Warn("event queue full, dropping event",
			"event_type", event.Type,
			"job_id", event.Job.ID)
	}
}

// Close stops accepting events, drains the queue, and waits for the
// dispatcher to finish.
func (e *InMemoryEventEmitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	<-e.done
}

// dispatch delivers queued events sequentially. A handler error is
// logged and the event still reaches the remaining handlers.
func (e *InMemoryEventEmitter) dispatch() {
	defer close(e.done)

	for event := range e.queue {
		e.mu.RLock()
		handlers := make([]EventHandler, len(e.handlers))
		copy(handlers, e.handlers)
		e.mu.RUnlock()

		for i, handler := range handlers {
			if err := handler.HandleEvent(context.Background(), event); err != nil {
				e.logger.Error("handler failed to process event",
					"error", err,
					"handler_index", i,
					"event_type", event.Type,
					"job_id", event.Job.ID)
			}
		}
	}
}
