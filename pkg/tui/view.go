package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"

	"github.com/entrhq/drover/pkg/types"
)

// View renders the watch interface: header, status bar, the scrolling event
// list, the optional detail pane, and a footer with key hints.
func (m model) View() string {
	if !m.ready {
		return "starting..."
	}
	var b strings.Builder
	b.WriteString(m.buildHeader())
	b.WriteString("\n")
	b.WriteString(m.buildStatusBar())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.showDetail {
		b.WriteString(m.buildDetailPane())
		b.WriteString("\n")
	}
	if m.done {
		b.WriteString(m.buildSummary())
		b.WriteString("\n")
	}
	b.WriteString(m.buildFooter())
	return b.String()
}

func (m model) buildHeader() string {
	return titleStyle.Render("drover watch") + "  " + instructionStyle.Render(truncate(m.instruction, m.width-16))
}

func (m model) buildStatusBar() string {
	var state string
	switch {
	case m.done && m.result != nil:
		state = renderStatus(m.result.Status)
	case m.aborting:
		state = abortedStyle.Render("aborting")
	default:
		state = m.spinner.View() + " running"
	}
	return state + statusBarStyle.Render(fmt.Sprintf("  %d events", len(m.events)))
}

func (m model) renderList() string {
	if len(m.events) == 0 {
		return statusBarStyle.Render("waiting for the first event")
	}
	lines := make([]string, 0, len(m.events))
	for i, event := range m.events {
		lines = append(lines, m.eventLine(event, i == m.selected))
	}
	return strings.Join(lines, "\n")
}

func (m model) eventLine(event *types.Event, selected bool) string {
	marker := "  "
	if selected {
		marker = "▸ "
	}
	line := fmt.Sprintf("%s%3d %s %s", marker, event.Seq, badgeFor(event), summarize(event))
	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

func badgeFor(event *types.Event) string {
	switch event.Type {
	case types.EventTypeAction:
		return actionBadge.Render("action")
	case types.EventTypeStatus:
		return statusBadge.Render("status")
	default:
		return errorBadge.Render("error ")
	}
}

// summarize folds an event into one list line.
func summarize(event *types.Event) string {
	data := event.Data
	if data == nil {
		return ""
	}
	switch event.Type {
	case types.EventTypeAction:
		line := actionSummary(data)
		if data.Reasoning != "" {
			line += "  " + reasoningStyle.Render(truncate(data.Reasoning, 48))
		}
		return line
	case types.EventTypeStatus:
		line := string(data.Status)
		if data.Message != "" {
			line += ": " + truncate(data.Message, 64)
		}
		return line
	default:
		line := string(data.Kind)
		if data.Message != "" {
			line += ": " + truncate(data.Message, 64)
		}
		if data.Terminal {
			line += " (terminal)"
		}
		return line
	}
}

func actionSummary(data *types.EventData) string {
	action := data.Action
	if action == nil {
		return ""
	}
	switch action.Type {
	case types.ActionTypeNavigate:
		return "navigate " + truncate(action.URL, 56)
	case types.ActionTypeClick:
		return "click " + action.Selector
	case types.ActionTypeType:
		return fmt.Sprintf("type %s %q", action.Selector, truncate(action.Text, 24))
	case types.ActionTypePress:
		return "press " + strings.Join(action.Keys, "+")
	case types.ActionTypeScroll:
		summary := "scroll " + action.Direction
		if action.Selector != "" {
			summary += " " + action.Selector
		}
		return summary
	case types.ActionTypeWait:
		return data.Output
	case types.ActionTypeExtract:
		return fmt.Sprintf("extract %s: %s", action.Query, truncate(data.Output, 40))
	default:
		return string(action.Type)
	}
}

// buildDetailPane renders the selected event as syntax-highlighted JSON,
// clipped to the pane height.
func (m model) buildDetailPane() string {
	event := m.selectedEvent()
	if event == nil {
		return ruleStyle.Render(rule(m.width))
	}
	header := ruleStyle.Render(fmt.Sprintf("─ event %d %s", event.Seq, rule(m.width-12)))
	payload, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return header + "\n" + errorBadge.Render("error ") + " " + err.Error()
	}
	body := highlightJSON(string(payload))
	lines := strings.Split(body, "\n")
	if limit := m.detailHeight(); len(lines) > limit {
		lines = append(lines[:limit-1], statusBarStyle.Render("... (c copies the full event)"))
	}
	return header + "\n" + strings.Join(lines, "\n")
}

func (m model) buildSummary() string {
	result := m.result
	if result == nil {
		return ""
	}
	line := fmt.Sprintf("%s in %s after %d steps", renderStatus(result.Status),
		result.Duration.Round(100*time.Millisecond), result.Steps)
	if result.Reason != "" {
		line += ": " + truncate(result.Reason, m.width/2)
	}
	return line
}

func (m model) buildFooter() string {
	if m.toast != "" {
		return toastStyle.Render(m.toast)
	}
	if m.done {
		return helpStyle.Render("↑/↓ select • enter detail • c copy • q quit")
	}
	return helpStyle.Render("↑/↓ select • enter detail • c copy • a abort • q quit")
}

func renderStatus(status types.TaskStatus) string {
	switch status {
	case types.TaskStatusCompleted:
		return completedStyle.Render("✓ completed")
	case types.TaskStatusFailed:
		return failedStyle.Render("✗ failed")
	case types.TaskStatusAborted:
		return abortedStyle.Render("⊘ aborted")
	default:
		return string(status)
	}
}

// highlightJSON runs the payload through chroma for terminal display. On any
// highlighting error the raw JSON is shown instead.
func highlightJSON(raw string) string {
	var buf strings.Builder
	if err := quick.Highlight(&buf, raw, "json", "terminal256", "monokai"); err != nil {
		return raw
	}
	return buf.String()
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func rule(width int) string {
	if width < 1 {
		width = 1
	}
	return strings.Repeat("─", width)
}
