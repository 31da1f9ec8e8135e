package translate

import (
	"fmt"
	"strings"

	"github.com/entrhq/drover/pkg/types"
)

// systemPrompt states the contract once per conversation: strict JSON, one
// action at a time, and the action vocabulary. The search-engine guidance
// keeps the model off country-specific domains and brittle button hunts.
const systemPrompt = `You are an expert browser automation assistant that translates natural language instructions into precise browser actions. Follow these rules:

1. Respond with STRICT JSON only. No prose outside the JSON.
2. Choose exactly ONE next action per response, based on the current page state and the progress so far.
3. Selectors may list 2-3 comma-separated alternatives, most specific first.
4. Prefer selectors from the interactive elements list; those are known to exist on the page.
5. When the task is done, or cannot proceed, emit a finish action with success true or false and a short reason. Never repeat an action that already succeeded.

Action types available:
- navigate: {"type":"navigate","url":"https://..."}
- click: {"type":"click","selector":"<css selector>"}
- type: {"type":"type","selector":"<css selector>","text":"...","pressEnter":true|false}
- press: {"type":"press","keys":["Enter"]}
- scroll: {"type":"scroll","direction":"up"|"down","selector":"<optional css selector>"}
- wait: {"type":"wait","seconds":1.5}
- extract: {"type":"extract","query":"<css selector>"}
- finish: {"type":"finish","reason":"...","success":true|false}

For Google searches specifically:
1. Always use google.com (not country-specific domains)
2. For the search box, use: "textarea[name='q'], textarea[title='Search'], input[name='q']"
3. After typing a query, set pressEnter true rather than clicking a search button

Response format:
{
  "output": [
    {
      "type": "reasoning",
      "summary": [{"text": "<why this action>"}]
    },
    {
      "type": "computer_call",
      "action": {
        "type": "<action_type>"
      }
    }
  ]
}`

const (
	// maxInstructionBytes caps the instruction so the prompt floor stays
	// bounded even for degenerate inputs.
	maxInstructionBytes = 2000

	// minHTMLBytes is the floor below which HTML is not shrunk further.
	minHTMLBytes = 2000

	// minElements is the floor below which the element list is not cut.
	minElements = 8

	// historyOutputBytes caps each history entry's recorded output.
	historyOutputBytes = 300
)

// buildUserPrompt composes the per-step prompt. When the result exceeds the
// token budget it degrades in a fixed order: drop the oldest history entry,
// then halve the HTML, then halve the element list. Every section has a
// floor, so composition terminates and the output is bounded for any input.
func (t *Translator) buildUserPrompt(instruction string, page *types.PageState, history []*types.ActionResult) string {
	instruction = truncate(instruction, maxInstructionBytes)

	if len(history) > t.cfg.MaxHistory {
		history = history[len(history)-t.cfg.MaxHistory:]
	}
	html := page.HTML
	if len(html) > t.cfg.MaxHTMLBytes {
		html = html[:t.cfg.MaxHTMLBytes] + "..."
	}
	elements := page.Elements
	if len(elements) > t.cfg.MaxElements {
		elements = elements[:t.cfg.MaxElements]
	}

	for {
		prompt := composePrompt(instruction, page, elements, html, history)
		if t.tok.Count(prompt) <= t.cfg.MaxPromptTokens {
			return prompt
		}
		switch {
		case len(history) > 0:
			history = history[1:]
		case len(html) > minHTMLBytes:
			html = html[:len(html)/2] + "..."
		case len(elements) > minElements:
			elements = elements[:len(elements)/2]
		default:
			// Floor reached; everything left is bounded by constants.
			return prompt
		}
	}
}

func composePrompt(instruction string, page *types.PageState, elements []types.ElementRef, html string, history []*types.ActionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n\n", instruction)
	fmt.Fprintf(&b, "Current page:\nURL: %s\nTitle: %s\n\n", page.URL, page.Title)

	b.WriteString("Interactive elements:\n")
	if len(elements) == 0 {
		b.WriteString("(none detected)\n")
	}
	for i, el := range elements {
		fmt.Fprintf(&b, "%2d. <%s> selector=%q", i+1, el.Tag, el.Selector)
		if el.Text != "" {
			fmt.Fprintf(&b, " text=%q", el.Text)
		}
		if el.AriaLabel != "" {
			fmt.Fprintf(&b, " aria-label=%q", el.AriaLabel)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(history) > 0 {
		b.WriteString("Previous actions (oldest first):\n")
		for i, result := range history {
			fmt.Fprintf(&b, "%2d. %s\n", i+1, formatResult(result))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Page HTML (sanitized):\n%s\n", html)
	return b.String()
}

// formatResult renders one history entry for the model: what was attempted,
// whether it worked, and any observation it produced.
func formatResult(result *types.ActionResult) string {
	if result.Action == nil || result.Action.Type == "" {
		// A translation attempt that produced no action; surface the
		// failure so the model can correct itself instead of repeating it.
		if result.Error != nil {
			return fmt.Sprintf("invalid model output discarded: %s", result.Error.Message)
		}
		return "no action"
	}

	var b strings.Builder
	b.WriteString(result.Action.String())
	if result.Success {
		b.WriteString(" -> ok")
	} else if result.Error != nil {
		fmt.Fprintf(&b, " -> failed (%s: %s)", result.Error.Kind, result.Error.Message)
	} else {
		b.WriteString(" -> failed")
	}
	if result.Output != "" {
		fmt.Fprintf(&b, " | output: %s", truncate(result.Output, historyOutputBytes))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
