// Package tui renders a live terminal view of one running task: a scrolling
// event list with per-type badges, a detail pane with syntax-highlighted
// event JSON, and keys to copy events or abort the task.
//
// The package is split by concern:
// - watcher.go: program lifecycle and event forwarding
// - model.go: bubbletea state
// - update.go: message handling and key bindings
// - view.go: rendering
// - styles.go: colors and styles
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/drover/pkg/task"
)

// Watcher runs the watch view for a single task handle. It owns the event
// channel: nothing else may consume the handle's events while the watcher
// runs.
type Watcher struct {
	handle      *task.Handle
	instruction string
	program     *tea.Program
}

// NewWatcher creates a watcher for the given handle. The instruction is only
// used for display.
func NewWatcher(handle *task.Handle, instruction string) *Watcher {
	return &Watcher{handle: handle, instruction: instruction}
}

// Run starts the view and blocks until the user quits or ctx is cancelled.
// Quitting while the task is still running aborts it.
func (w *Watcher) Run(ctx context.Context) error {
	m := newModel(w.handle, w.instruction)
	w.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for event := range w.handle.Events() {
			w.program.Send(eventMsg{event: event})
		}
		w.program.Send(taskDoneMsg{result: w.handle.Result()})
	}()

	if _, err := w.program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			w.handle.Abort()
			return ctx.Err()
		}
		return fmt.Errorf("failed to run watch view: %w", err)
	}
	return nil
}
