package tui

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles all state transitions for the watch view.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.listHeight())
			m.ready = true
		}
		m.resize()
		m.refreshList()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.events = append(m.events, msg.event)
		m.selected = len(m.events) - 1
		m.refreshList()
		return m, nil

	case taskDoneMsg:
		m.done = true
		m.result = msg.result
		m.resize()
		m.refreshList()
		return m, nil

	case clearToastMsg:
		m.toast = ""
		return m, nil
	}

	// Spinner ticks flow through here. Dropping the follow-up command once
	// the task is done stops the tick loop.
	if m.done {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if !m.done {
			m.task.Abort()
		}
		return m, tea.Quit

	case "a":
		if !m.done && !m.aborting {
			m.aborting = true
			m.task.Abort()
		}
		return m, nil

	case "enter":
		if len(m.events) == 0 {
			return m, nil
		}
		m.showDetail = !m.showDetail
		m.resize()
		m.refreshList()
		return m, nil

	case "up", "k":
		if m.selected > 0 {
			m.selected--
			m.refreshList()
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.events)-1 {
			m.selected++
			m.refreshList()
		}
		return m, nil

	case "c":
		event := m.selectedEvent()
		if event == nil {
			return m, nil
		}
		payload, err := json.MarshalIndent(event, "", "  ")
		if err != nil {
			m.toast = "failed to encode event: " + err.Error()
			return m, clearToastLater()
		}
		if err := m.copyFn(string(payload)); err != nil {
			m.toast = "clipboard unavailable: " + err.Error()
		} else {
			m.toast = "event copied to clipboard"
		}
		return m, clearToastLater()
	}
	return m, nil
}

// resize recomputes the viewport dimensions after anything that changes the
// surrounding chrome: window size, the detail pane toggling, or the summary
// line appearing.
func (m *model) resize() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = m.listHeight()
}

// refreshList re-renders the event list and keeps the selected line visible.
// Each event renders as exactly one line, so the selected index doubles as a
// line offset.
func (m *model) refreshList() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderList())
	if m.selected < 0 {
		return
	}
	if m.selected < m.viewport.YOffset {
		m.viewport.SetYOffset(m.selected)
	} else if m.selected >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(m.selected - m.viewport.Height + 1)
	}
}

// listHeight is the terminal height minus the fixed chrome: title,
// instruction, status bar, and footer, plus the detail pane and summary line
// when visible.
func (m model) listHeight() int {
	h := m.height - 5
	if m.showDetail {
		h -= m.detailHeight() + 1
	}
	if m.done {
		h--
	}
	if h < 3 {
		h = 3
	}
	return h
}

func (m model) detailHeight() int {
	h := m.height / 2
	if h > 12 {
		h = 12
	}
	if h < 4 {
		h = 4
	}
	return h
}

func clearToastLater() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearToastMsg{}
	})
}
