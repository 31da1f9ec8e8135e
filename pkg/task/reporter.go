package task

import (
	"sync"

	"github.com/entrhq/drover/pkg/types"
)

// ChannelReporter bridges the executor's event stream to a Go channel
// without reordering. Report blocks once the buffer is full, which
// backpressures the task instead of dropping or coalescing events.
type ChannelReporter struct {
	ch        chan *types.Event
	closeOnce sync.Once
}

// NewChannelReporter creates a reporter with the given buffer capacity.
// A non-positive buffer falls back to DefaultEventBuffer.
func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &ChannelReporter{ch: make(chan *types.Event, buffer)}
}

// Report delivers the event to the channel, blocking when the buffer is
// full. Report must not be called after Close.
func (r *ChannelReporter) Report(event *types.Event) {
	r.ch <- event
}

// Events returns the receive side of the channel. The channel is closed by
// Close once the task has emitted its terminal event.
func (r *ChannelReporter) Events() <-chan *types.Event {
	return r.ch
}

// Close closes the event channel. Safe to call multiple times.
func (r *ChannelReporter) Close() {
	r.closeOnce.Do(func() {
		close(r.ch)
	})
}

// MultiReporter fans one event stream out to several reporters, delivering
// to each in registration order before moving to the next event.
type MultiReporter struct {
	reporters []Reporter
}

// NewMultiReporter creates a reporter that forwards to each given reporter
// in order. Nil entries are skipped.
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	kept := make([]Reporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return &MultiReporter{reporters: kept}
}

// Report forwards the event to every registered reporter.
func (m *MultiReporter) Report(event *types.Event) {
	for _, r := range m.reporters {
		r.Report(event)
	}
}
