package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType identifies the kind of browser action the model selected.
type ActionType string

const (
	ActionTypeNavigate ActionType = "navigate" // load a URL in the session page
	ActionTypeClick    ActionType = "click"    // click the first element matching a selector
	ActionTypeType     ActionType = "type"     // focus a field and type text with human pacing
	ActionTypePress    ActionType = "press"    // press one or more keyboard keys
	ActionTypeScroll   ActionType = "scroll"   // scroll the page or a specific element into view
	ActionTypeWait     ActionType = "wait"     // pause before observing the page again
	ActionTypeExtract  ActionType = "extract"  // pull text content matching a CSS query
	ActionTypeFinish   ActionType = "finish"   // declare the task done, successfully or not
)

// ScrollDirection values accepted by scroll actions.
const (
	ScrollUp   = "up"
	ScrollDown = "down"
)

// Action is one concrete browser step chosen by the model. A single flat
// struct carries every variant; Type selects which fields are meaningful.
// The JSON shape matches what the model is instructed to emit, so the same
// struct decodes model output and encodes outbound events.
type Action struct {
	Type ActionType `json:"type"`

	// navigate
	URL string `json:"url,omitempty"`

	// click, type, scroll (optional), extract via Query
	Selector string `json:"selector,omitempty"`

	// type
	Text       string `json:"text,omitempty"`
	PressEnter bool   `json:"pressEnter,omitempty"`

	// press
	Keys []string `json:"keys,omitempty"`

	// scroll
	Direction string `json:"direction,omitempty"`

	// wait
	Seconds float64 `json:"seconds,omitempty"`

	// extract
	Query string `json:"query,omitempty"`

	// finish. Success is a pointer so an explicit false survives marshaling.
	Reason  string `json:"reason,omitempty"`
	Success *bool  `json:"success,omitempty"`
}

// NewNavigateAction creates a navigate action for the given URL.
func NewNavigateAction(url string) *Action {
	return &Action{Type: ActionTypeNavigate, URL: url}
}

// NewClickAction creates a click action for the given selector.
func NewClickAction(selector string) *Action {
	return &Action{Type: ActionTypeClick, Selector: selector}
}

// NewTypeAction creates a typing action. When pressEnter is true the session
// presses Enter after the final character, which is how search boxes are
// normally submitted.
func NewTypeAction(selector, text string, pressEnter bool) *Action {
	return &Action{Type: ActionTypeType, Selector: selector, Text: text, PressEnter: pressEnter}
}

// NewPressAction creates a key press action. Keys use Playwright names
// such as "Enter", "Tab", or "ArrowDown".
func NewPressAction(keys ...string) *Action {
	return &Action{Type: ActionTypePress, Keys: keys}
}

// NewScrollAction creates a scroll action. Selector is optional; when set the
// session scrolls that element into view instead of paging the viewport.
func NewScrollAction(direction, selector string) *Action {
	return &Action{Type: ActionTypeScroll, Direction: direction, Selector: selector}
}

// NewWaitAction creates a wait action pausing for the given number of seconds.
func NewWaitAction(seconds float64) *Action {
	return &Action{Type: ActionTypeWait, Seconds: seconds}
}

// NewExtractAction creates an extract action for the given CSS query.
func NewExtractAction(query string) *Action {
	return &Action{Type: ActionTypeExtract, Query: query}
}

// NewFinishAction creates a finish action declaring the task outcome.
func NewFinishAction(reason string, success bool) *Action {
	return &Action{Type: ActionTypeFinish, Reason: reason, Success: &success}
}

// ParseActionJSON decodes a single action object and validates it. A wrong
// field type fails the decode; an unknown action type or a missing required
// field fails validation. Callers get an action that is safe to execute, or
// an error, never a guess.
func ParseActionJSON(data []byte) (*Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// IsFinish returns true for finish actions.
func (a *Action) IsFinish() bool {
	return a != nil && a.Type == ActionTypeFinish
}

// Succeeded reports the declared outcome of a finish action. It is false for
// any other action type or when the model omitted the flag.
func (a *Action) Succeeded() bool {
	return a.IsFinish() && a.Success != nil && *a.Success
}

// Validate checks that the action carries the fields its type requires.
// It is the single gate between model output and execution: anything that
// fails here is treated as a malformed response, never executed on a guess.
func (a *Action) Validate() error {
	if a == nil {
		return fmt.Errorf("action is nil")
	}
	switch a.Type {
	case ActionTypeNavigate:
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("navigate action requires url")
		}
	case ActionTypeClick:
		if strings.TrimSpace(a.Selector) == "" {
			return fmt.Errorf("click action requires selector")
		}
	case ActionTypeType:
		if strings.TrimSpace(a.Selector) == "" {
			return fmt.Errorf("type action requires selector")
		}
		if a.Text == "" {
			return fmt.Errorf("type action requires text")
		}
	case ActionTypePress:
		if len(a.Keys) == 0 {
			return fmt.Errorf("press action requires at least one key")
		}
		for _, k := range a.Keys {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("press action contains an empty key")
			}
		}
	case ActionTypeScroll:
		if a.Direction != ScrollUp && a.Direction != ScrollDown {
			return fmt.Errorf("scroll action requires direction %q or %q", ScrollUp, ScrollDown)
		}
	case ActionTypeWait:
		if a.Seconds < 0 {
			return fmt.Errorf("wait action requires a non-negative duration")
		}
	case ActionTypeExtract:
		if strings.TrimSpace(a.Query) == "" {
			return fmt.Errorf("extract action requires query")
		}
	case ActionTypeFinish:
		if a.Success == nil {
			return fmt.Errorf("finish action requires success")
		}
	case "":
		return fmt.Errorf("action type is missing")
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// String renders a short human-readable form used in logs and the watch UI.
func (a *Action) String() string {
	if a == nil {
		return "<nil>"
	}
	switch a.Type {
	case ActionTypeNavigate:
		return fmt.Sprintf("navigate %s", a.URL)
	case ActionTypeClick:
		return fmt.Sprintf("click %s", a.Selector)
	case ActionTypeType:
		return fmt.Sprintf("type %q into %s", truncateForLog(a.Text, 40), a.Selector)
	case ActionTypePress:
		return fmt.Sprintf("press %s", strings.Join(a.Keys, "+"))
	case ActionTypeScroll:
		if a.Selector != "" {
			return fmt.Sprintf("scroll %s to %s", a.Direction, a.Selector)
		}
		return fmt.Sprintf("scroll %s", a.Direction)
	case ActionTypeWait:
		return fmt.Sprintf("wait %.1fs", a.Seconds)
	case ActionTypeExtract:
		return fmt.Sprintf("extract %s", a.Query)
	case ActionTypeFinish:
		if a.Succeeded() {
			return fmt.Sprintf("finish: %s", a.Reason)
		}
		return fmt.Sprintf("finish (unsuccessful): %s", a.Reason)
	default:
		return string(a.Type)
	}
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
