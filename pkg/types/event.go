// Package types defines the shared vocabulary of the engine: actions, page
// snapshots, task results, and the events that carry them to subscribers.
package types

import "time"

// EventType identifies the kind of event emitted while a task runs.
type EventType string

const (
	EventTypeAction EventType = "action" // an action executed and produced a fresh page state
	EventTypeStatus EventType = "status" // task lifecycle transition
	EventTypeError  EventType = "error"  // a failure surfaced, retryable or terminal
)

// Event is the single outbound message type. Events for one task carry
// strictly increasing sequence numbers and are delivered to subscribers in
// emission order.
type Event struct {
	Type   EventType  `json:"type"`
	TaskID string     `json:"taskId"`
	Seq    uint64     `json:"seq"`
	At     time.Time  `json:"at"`
	Data   *EventData `json:"data"`
}

// EventData is the per-type payload. Only the fields relevant to the event's
// type are populated; the rest stay empty and drop out of the JSON.
type EventData struct {
	// action events
	Action    *Action      `json:"action,omitempty"`
	Reasoning string       `json:"reasoning,omitempty"`
	Step      int          `json:"step,omitempty"`
	Output    string       `json:"output,omitempty"`
	URL       string       `json:"url,omitempty"`
	HTML      string       `json:"html,omitempty"`
	Elements  []ElementRef `json:"interactive_elements,omitempty"`

	// status events
	Status  TaskStatus `json:"status,omitempty"`
	Message string     `json:"message,omitempty"`

	// error events
	Kind     ErrorKind `json:"kind,omitempty"`
	Terminal bool      `json:"terminal,omitempty"`
}

// NewActionEvent creates an event describing one executed action together
// with the page state it produced. The result's page may be nil when the
// action did not yield a snapshot (a failed navigation, for example).
func NewActionEvent(taskID string, seq uint64, step int, result *ActionResult, reasoning string) *Event {
	data := &EventData{
		Action:    result.Action,
		Reasoning: reasoning,
		Step:      step,
		Output:    result.Output,
	}
	if result.Page != nil {
		data.URL = result.Page.URL
		data.HTML = result.Page.HTML
		data.Elements = result.Page.Elements
	}
	return &Event{
		Type:   EventTypeAction,
		TaskID: taskID,
		Seq:    seq,
		At:     time.Now(),
		Data:   data,
	}
}

// NewStatusEvent creates a lifecycle transition event.
func NewStatusEvent(taskID string, seq uint64, status TaskStatus, message string) *Event {
	return &Event{
		Type:   EventTypeStatus,
		TaskID: taskID,
		Seq:    seq,
		At:     time.Now(),
		Data:   &EventData{Status: status, Message: message},
	}
}

// NewErrorEvent creates an error event. Terminal marks the event that ends
// the task; retryable failures emit non-terminal error events first.
func NewErrorEvent(taskID string, seq uint64, kind ErrorKind, message string, terminal bool) *Event {
	return &Event{
		Type:   EventTypeError,
		TaskID: taskID,
		Seq:    seq,
		At:     time.Now(),
		Data:   &EventData{Kind: kind, Message: message, Terminal: terminal},
	}
}

// IsActionEvent returns true if the event describes an executed action.
func (e *Event) IsActionEvent() bool {
	return e.Type == EventTypeAction
}

// IsStatusEvent returns true if the event describes a lifecycle transition.
func (e *Event) IsStatusEvent() bool {
	return e.Type == EventTypeStatus
}

// IsErrorEvent returns true if the event describes a failure.
func (e *Event) IsErrorEvent() bool {
	return e.Type == EventTypeError
}

// IsTerminal returns true for the event that ends a task: a status event
// carrying a terminal state, or an error event flagged terminal.
func (e *Event) IsTerminal() bool {
	if e.Data == nil {
		return false
	}
	switch e.Type {
	case EventTypeStatus:
		return e.Data.Status.Terminal()
	case EventTypeError:
		return e.Data.Terminal
	}
	return false
}
