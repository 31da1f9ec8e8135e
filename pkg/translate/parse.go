package translate

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/entrhq/drover/pkg/types"
)

// envelope mirrors the response format the system prompt asks for: a list of
// output items where reasoning and the computer call travel separately.
type envelope struct {
	Output []envelopeItem `json:"output"`
}

type envelopeItem struct {
	Type    string          `json:"type"`
	Summary []summaryText   `json:"summary,omitempty"`
	Action  json.RawMessage `json:"action,omitempty"`
}

type summaryText struct {
	Text string `json:"text"`
}

const excerptBytes = 160

// parseAction turns raw model output into a validated action plus the
// reasoning summary that came with it. Output that cannot be parsed, or that
// parses into an action failing validation, is rejected as a malformed
// response carrying an excerpt of the offending text; nothing is ever
// executed on a guess.
//
// Models wrap JSON in prose and code fences often enough that the raw text
// is first trimmed to its outermost JSON value, then run through jsonrepair
// when it still does not parse. Both the documented envelope format and a
// bare action object are accepted. If the model emits several computer calls
// in one response, only the first is used.
func parseAction(raw string) (*types.Action, string, error) {
	payload, ok := stripWrapping(raw)
	if !ok {
		return nil, "", types.NewMalformedResponseError("no JSON in model output: " + excerpt(raw))
	}

	if !json.Valid([]byte(payload)) {
		repaired, err := jsonrepair.JSONRepair(payload)
		if err != nil {
			return nil, "", types.NewMalformedResponseError("unparseable model output: " + excerpt(raw))
		}
		payload = repaired
	}

	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err == nil && len(env.Output) > 0 {
		return actionFromEnvelope(env, raw)
	}

	// Some models skip the envelope and answer with the action object alone.
	action, err := types.ParseActionJSON([]byte(payload))
	if err != nil {
		return nil, "", types.NewMalformedResponseError(err.Error() + ": " + excerpt(raw))
	}
	return action, "", nil
}

func actionFromEnvelope(env envelope, raw string) (*types.Action, string, error) {
	var reasoning []string
	var action *types.Action

	for _, item := range env.Output {
		switch item.Type {
		case "reasoning":
			for _, s := range item.Summary {
				if s.Text != "" {
					reasoning = append(reasoning, s.Text)
				}
			}
		case "computer_call":
			if action != nil {
				continue // one action per response; extras are dropped
			}
			a, err := types.ParseActionJSON(item.Action)
			if err != nil {
				return nil, "", types.NewMalformedResponseError(err.Error() + ": " + excerpt(raw))
			}
			action = a
		}
	}

	if action == nil {
		return nil, "", types.NewMalformedResponseError("no computer_call in model output: " + excerpt(raw))
	}
	return action, strings.Join(reasoning, " "), nil
}

// stripWrapping slices raw down to its outermost JSON value, discarding code
// fences and any prose around it. It returns false when raw contains no
// braced or bracketed region at all.
func stripWrapping(raw string) (string, bool) {
	start := len(raw)
	if i := strings.IndexByte(raw, '{'); i >= 0 {
		start = i
	}
	if i := strings.IndexByte(raw, '['); i >= 0 && i < start {
		start = i
	}
	if start == len(raw) {
		return "", false
	}

	end := -1
	if i := strings.LastIndexByte(raw, '}'); i > end {
		end = i
	}
	if i := strings.LastIndexByte(raw, ']'); i > end {
		end = i
	}
	if end < start {
		return "", false
	}
	return raw[start : end+1], true
}

// excerpt returns a short prefix of s for error messages, with newlines
// collapsed so log lines stay single-line.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > excerptBytes {
		s = s[:excerptBytes] + "..."
	}
	if s == "" {
		return "(empty)"
	}
	return s
}
