package tui

import (
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/drover/pkg/types"
)

// aborter is the one slice of the task handle the view needs.
type aborter interface {
	Abort()
}

// model is the bubbletea state for the watch view.
type model struct {
	viewport viewport.Model
	spinner  spinner.Model

	task        aborter
	instruction string

	// Event list state
	events     []*types.Event
	selected   int
	showDetail bool

	// Task outcome
	result   *types.TaskResult
	done     bool
	aborting bool

	// Transient notice shown in the footer, cleared on a timer.
	toast string

	// copyFn writes text to the system clipboard. Swapped in tests.
	copyFn func(string) error

	width  int
	height int
	ready  bool
}

// eventMsg delivers one task event from the watcher goroutine.
type eventMsg struct {
	event *types.Event
}

// taskDoneMsg signals that the task reached a terminal state and the event
// stream drained.
type taskDoneMsg struct {
	result *types.TaskResult
}

// clearToastMsg removes the transient footer notice.
type clearToastMsg struct{}

func newModel(task aborter, instruction string) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(steelBlue)
	return model{
		spinner:     sp,
		task:        task,
		instruction: instruction,
		selected:    -1,
		copyFn:      clipboard.WriteAll,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) selectedEvent() *types.Event {
	if m.selected < 0 || m.selected >= len(m.events) {
		return nil
	}
	return m.events[m.selected]
}
