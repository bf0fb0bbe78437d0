package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSingleKeyRunsInSubmissionOrder(t *testing.T) {
	m := NewManager(4, testLogger())

	const calls = 20
	var mu sync.Mutex
	var order []int
	var running int
	var wg sync.WaitGroup

	// Submit sequentially so arrival order is deterministic, but let
	// every call wait concurrently.
	for i := 0; i < calls; i++ {
		i := i
		submitted := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.AcquireAndRun(context.Background(), "conv-1", func(ctx context.Context) error {
				mu.Lock()
				running++
				assert.Equal(t, 1, running, "calls on one key must not overlap")
				order = append(order, i)
				running--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
		// Give the goroutine time to join the queue before the next
		// submission so FIFO order is observable.
		close(submitted)
		time.Sleep(5 * time.Millisecond)
	}

	wg.Wait()

	require.Len(t, order, calls)
	for i := 0; i < calls; i++ {
		assert.Equal(t, i, order[i], "expected strict submission order")
	}

	stats := m.Stats()
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 0, stats.QueuedTotal)
}

func TestGlobalCapDefersExtraKeys(t *testing.T) {
	const maxConcurrent = 3
	m := NewManager(maxConcurrent, testLogger())

	releaseFirst := make(chan struct{})
	started := make(chan string, maxConcurrent+1)
	var wg sync.WaitGroup

	// Fill every slot with a blocked call.
	for i := 0; i < maxConcurrent; i++ {
		key := fmt.Sprintf("conv-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.AcquireAndRun(context.Background(), key, func(ctx context.Context) error {
				started <- key
				<-releaseFirst
				return nil
			})
		}()
	}

	for i := 0; i < maxConcurrent; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("expected slot holders to start immediately")
		}
	}

	// One extra key must wait for a slot, not be rejected.
	extraRan := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := m.AcquireAndRun(context.Background(), "conv-extra", func(ctx context.Context) error {
			close(extraRan)
			return nil
		})
		assert.NoError(t, err)
	}()

	select {
	case <-extraRan:
		t.Fatal("extra key ran while all slots were held")
	case <-time.After(50 * time.Millisecond):
	}

	stats := m.Stats()
	assert.Equal(t, maxConcurrent, stats.Active)
	assert.Equal(t, 1, stats.QueuedTotal)

	// Freeing any slot lets the deferred key run.
	close(releaseFirst)

	select {
	case <-extraRan:
	case <-time.After(2 * time.Second):
		t.Fatal("deferred key never received the freed slot")
	}

	wg.Wait()
}

func TestErrorDoesNotBlockQueue(t *testing.T) {
	m := NewManager(2, testLogger())

	wantErr := errors.New("handler exploded")

	firstErr := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		firstErr <- m.AcquireAndRun(context.Background(), "conv-1", func(ctx context.Context) error {
			close(ready)
			return wantErr
		})
	}()
	<-ready

	// A later call on the same key still runs and sees its own result.
	err := m.AcquireAndRun(context.Background(), "conv-1", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)

	assert.ErrorIs(t, <-firstErr, wantErr)
}

func TestCancelWhileWaitingForSlot(t *testing.T) {
	m := NewManager(1, testLogger())

	block := make(chan struct{})
	holderStarted := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.AcquireAndRun(context.Background(), "conv-held", func(ctx context.Context) error {
			close(holderStarted)
			<-block
			return nil
		})
	}()
	<-holderStarted

	ctx, cancel := context.WithCancel(context.Background())
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- m.AcquireAndRun(ctx, "conv-waiting", func(ctx context.Context) error {
			t.Error("cancelled call must not run")
			return nil
		})
	}()

	// Let the waiter queue, then abandon it.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-waitErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled waiter never returned")
	}

	close(block)
	wg.Wait()

	// The abandoned key must not wedge slot accounting.
	err := m.AcquireAndRun(context.Background(), "conv-after", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 0, stats.QueuedTotal)
}

func TestNilFunc(t *testing.T) {
	m := NewManager(1, testLogger())
	err := m.AcquireAndRun(context.Background(), "conv-1", nil)
	assert.ErrorIs(t, err, ErrNilFunc)
}

func TestNewManagerClampsCap(t *testing.T) {
	m := NewManager(0, testLogger())
	assert.Equal(t, 1, m.Stats().MaxConcurrent)
}
