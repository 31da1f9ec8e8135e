package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/entrhq/drover/pkg/types"
)

// Handle is the caller's view of a running task. It is safe for concurrent
// use; any number of goroutines may poll Status or Wait while one consumes
// Events.
type Handle struct {
	id     string
	events *ChannelReporter
	cancel context.CancelFunc
	abort  atomic.Bool
	done   chan struct{}

	mu     sync.RWMutex
	status types.TaskStatus
	result *types.TaskResult
}

func newHandle(id string, cancel context.CancelFunc, buffer int) *Handle {
	return &Handle{
		id:     id,
		events: NewChannelReporter(buffer),
		cancel: cancel,
		done:   make(chan struct{}),
		status: types.TaskStatusRunning,
	}
}

// ID returns the task's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// Events returns the task's ordered event stream. The channel is closed
// after the terminal event has been delivered.
func (h *Handle) Events() <-chan *types.Event {
	return h.events.Events()
}

// Abort requests cooperative cancellation. The in-flight action is allowed
// to finish; no new action starts. Abort after a terminal state is a no-op,
// and an abort racing a completing step wins: the task ends Aborted.
func (h *Handle) Abort() {
	h.abort.Store(true)
	h.cancel()
}

// Status returns the task's current lifecycle state.
func (h *Handle) Status() types.TaskStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Result returns the task's final result, or nil while it is still running.
func (h *Handle) Result() *types.TaskResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.result
}

// Done returns a channel closed when the task reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task ends and returns its result, or returns early
// with ctx's error. An early return does not abort the task.
func (h *Handle) Wait(ctx context.Context) (*types.TaskResult, error) {
	select {
	case <-h.done:
		return h.Result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// aborted reports whether Abort has been requested.
func (h *Handle) aborted() bool {
	return h.abort.Load()
}

// complete records the final result and releases waiters. Called exactly
// once, by the task goroutine, before the terminal event is reported.
func (h *Handle) complete(result *types.TaskResult) {
	h.mu.Lock()
	h.status = result.Status
	h.result = result
	h.mu.Unlock()
	close(h.done)
}
