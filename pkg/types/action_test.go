package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestActionValidate(t *testing.T) {
	tests := []struct {
		action  *Action
		name    string
		wantErr string
	}{
		{
			name:   "valid navigate",
			action: NewNavigateAction("https://example.com"),
		},
		{
			name:    "navigate without url",
			action:  &Action{Type: ActionTypeNavigate},
			wantErr: "requires url",
		},
		{
			name:   "valid click",
			action: NewClickAction("#submit"),
		},
		{
			name:    "click without selector",
			action:  &Action{Type: ActionTypeClick},
			wantErr: "requires selector",
		},
		{
			name:   "valid type",
			action: NewTypeAction("input[name='q']", "cricket", true),
		},
		{
			name:    "type without text",
			action:  &Action{Type: ActionTypeType, Selector: "#q"},
			wantErr: "requires text",
		},
		{
			name:   "valid press",
			action: NewPressAction("Enter"),
		},
		{
			name:    "press without keys",
			action:  &Action{Type: ActionTypePress},
			wantErr: "at least one key",
		},
		{
			name:    "press with blank key",
			action:  &Action{Type: ActionTypePress, Keys: []string{"Enter", " "}},
			wantErr: "empty key",
		},
		{
			name:   "valid scroll",
			action: NewScrollAction(ScrollDown, ""),
		},
		{
			name:    "scroll with bad direction",
			action:  &Action{Type: ActionTypeScroll, Direction: "sideways"},
			wantErr: "direction",
		},
		{
			name:   "valid wait",
			action: NewWaitAction(1.5),
		},
		{
			name:    "negative wait",
			action:  &Action{Type: ActionTypeWait, Seconds: -1},
			wantErr: "non-negative",
		},
		{
			name:   "valid extract",
			action: NewExtractAction("h1"),
		},
		{
			name:   "valid finish",
			action: NewFinishAction("done", true),
		},
		{
			name:    "finish without success",
			action:  &Action{Type: ActionTypeFinish, Reason: "done"},
			wantErr: "requires success",
		},
		{
			name:    "missing type",
			action:  &Action{},
			wantErr: "type is missing",
		},
		{
			name:    "unknown type",
			action:  &Action{Type: "teleport"},
			wantErr: "unknown action type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseActionJSON(t *testing.T) {
	action, err := ParseActionJSON([]byte(`{"type": "type", "selector": "#q", "text": "cricket", "pressEnter": true}`))
	if err != nil {
		t.Fatalf("ParseActionJSON() = %v, want nil", err)
	}
	if action.Type != ActionTypeType || action.Selector != "#q" || !action.PressEnter {
		t.Errorf("decoded action = %+v, want the typed search input", action)
	}

	rejections := []struct {
		name string
		raw  string
	}{
		{"wrong value type", `{"type": "wait", "seconds": "three"}`},
		{"unknown action type", `{"type": "teleport"}`},
		{"missing required field", `{"type": "click"}`},
		{"not an object", `"click"`},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseActionJSON([]byte(tt.raw)); err == nil {
				t.Errorf("ParseActionJSON(%s) = nil, want error", tt.raw)
			}
		})
	}
}

func TestFinishSuccessSurvivesJSON(t *testing.T) {
	raw, err := json.Marshal(NewFinishAction("could not log in", false))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(raw), `"success":false`) {
		t.Errorf("explicit false must stay on the wire, got %s", raw)
	}

	var decoded Action
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Success == nil || *decoded.Success {
		t.Errorf("Success = %v, want explicit false", decoded.Success)
	}
	if decoded.Succeeded() {
		t.Error("Succeeded() should be false for an unsuccessful finish")
	}
}

func TestActionTypeDiscriminator(t *testing.T) {
	raw, err := json.Marshal(NewClickAction("#login"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["type"] != "click" {
		t.Errorf("type = %v, want click", decoded["type"])
	}
	if decoded["selector"] != "#login" {
		t.Errorf("selector = %v, want #login", decoded["selector"])
	}
	if _, present := decoded["success"]; present {
		t.Error("click action must not carry a success field")
	}
}

func TestActionString(t *testing.T) {
	tests := []struct {
		action *Action
		name   string
		want   string
	}{
		{
			name:   "navigate",
			action: NewNavigateAction("https://example.com"),
			want:   "navigate https://example.com",
		},
		{
			name:   "type truncates long text",
			action: NewTypeAction("#q", strings.Repeat("x", 60), false),
			want:   "...",
		},
		{
			name:   "press joins keys",
			action: NewPressAction("Control", "a"),
			want:   "press Control+a",
		},
		{
			name:   "scroll with target",
			action: NewScrollAction(ScrollDown, "#footer"),
			want:   "scroll down to #footer",
		},
		{
			name:   "unsuccessful finish",
			action: NewFinishAction("gave up", false),
			want:   "finish (unsuccessful): gave up",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.action.String()
			if !strings.Contains(got, tt.want) {
				t.Errorf("String() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
