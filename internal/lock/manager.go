package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrNilFunc is returned when AcquireAndRun is called without a function.
var ErrNilFunc = errors.New("lock: fn cannot be nil")

// Stats reports the manager's current occupancy for health endpoints.
type Stats struct {
	// Active is the number of distinct keys currently holding the lock.
	Active int `json:"active"`

	// MaxConcurrent is the configured cap on active keys.
	MaxConcurrent int `json:"max_concurrent"`

	// QueuedTotal counts calls waiting either for their key's turn or
	// for a free global slot.
	QueuedTotal int `json:"queued_total"`
}

// waiter represents one queued AcquireAndRun call. Its ready channel is
// closed, with started set under the manager mutex, when the call may run.
type waiter struct {
	ready   chan struct{}
	started bool
}

// keyEntry tracks the FIFO of calls for a single conversation key.
// queue[0] is the running call when the key is active.
type keyEntry struct {
	queue  []*waiter
	active bool
}

// Manager serializes calls per conversation key with a global cap on
// concurrently active keys.
type Manager struct {
	mu sync.Mutex

	maxConcurrent int
	entries       map[string]*keyEntry

	// slotQueue holds keys waiting, in arrival order, for a global slot.
	slotQueue []string

	activeKeys   int
	totalWaiters int

	logger *slog.Logger
}

// NewManager creates a lock manager allowing at most maxConcurrent
// distinct keys to hold the lock simultaneously. Values below 1 are
// raised to 1.
func NewManager(maxConcurrent int, logger *slog.Logger) *Manager {
	if maxConcurrent < 1 {
		logger.Warn("invalid max concurrent locks specified, using 1",
			"specified", maxConcurrent)
		maxConcurrent = 1
	}

	return &Manager{
		maxConcurrent: maxConcurrent,
		entries:       make(map[string]*keyEntry),
		logger:        logger.With("component", "conversation_lock"),
	}
}

// AcquireAndRun executes fn with exclusive access for key. Calls sharing
// a key run strictly in submission order; a new key waits for a global
// slot when the cap is reached. The error returned by fn propagates only
// to its own caller and never blocks subsequent calls on the same key.
//
// If ctx is cancelled before fn starts, the acquisition is abandoned and
// the context error is returned.
func (m *Manager) AcquireAndRun(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilFunc
	}

	w := &waiter{ready: make(chan struct{})}

	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &keyEntry{}
		m.entries[key] = entry
	}
	entry.queue = append(entry.queue, w)
	m.totalWaiters++

	if len(entry.queue) == 1 {
		// First call for this key: take a slot now or line up for one.
		if m.activeKeys < m.maxConcurrent {
			entry.active = true
			m.activeKeys++
			w.started = true
			close(w.ready)
		} else {
			m.slotQueue = append(m.slotQueue, key)
			m.logger.Debug("conversation waiting for lock slot",
				"key", key, "active", m.activeKeys)
		}
	}
	m.mu.Unlock()

	select {
	case <-w.ready:
	case <-ctx.Done():
		if m.abandon(key, w) {
			return ctx.Err()
		}
		// Lost the race: the slot was granted while we were
		// cancelling, so we own the key's head and must release it.
		m.release(key)
		return ctx.Err()
	}

	defer m.release(key)
	return fn(ctx)
}

// Stats returns the manager's current occupancy.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Active:        m.activeKeys,
		MaxConcurrent: m.maxConcurrent,
		QueuedTotal:   m.totalWaiters - m.activeKeys,
	}
}

// abandon removes a not-yet-started waiter from its key's queue.
// Returns false if the waiter started concurrently with cancellation,
// in which case the caller owns the lock and must release it.
func (m *Manager) abandon(key string, w *waiter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w.started {
		return false
	}

	entry := m.entries[key]
	for i, queued := range entry.queue {
		if queued == w {
			entry.queue = append(entry.queue[:i], entry.queue[i+1:]...)
			m.totalWaiters--
			break
		}
	}

	if len(entry.queue) == 0 {
		// Last caller gave up before the key ever ran; drop the entry.
		// A stale slotQueue reference is skipped when slots are granted.
		delete(m.entries, key)
	}

	return true
}

// release pops the finished head call for key, hands the key to its next
// queued call, or frees the key's slot and grants it to the next waiting
// key in arrival order.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.entries[key]
	if entry == nil || len(entry.queue) == 0 {
		return
	}

	entry.queue = entry.queue[1:]
	m.totalWaiters--

	if len(entry.queue) > 0 {
		// Same key keeps its slot; run the next call in order.
		next := entry.queue[0]
		next.started = true
		close(next.ready)
		return
	}

	delete(m.entries, key)
	m.activeKeys--
	m.grantNextSlot()
}

// grantNextSlot activates the oldest key still waiting for a slot.
// Must be called with m.mu held.
func (m *Manager) grantNextSlot() {
	for len(m.slotQueue) > 0 {
		key := m.slotQueue[0]
		m.slotQueue = m.slotQueue[1:]

		entry := m.entries[key]
		if entry == nil || entry.active || len(entry.queue) == 0 {
			// Stale reference left behind by a cancelled caller.
			continue
		}

		entry.active = true
		m.activeKeys++
		head := entry.queue[0]
		head.started = true
		close(head.ready)
		return
	}
}
