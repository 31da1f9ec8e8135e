package types

import "time"

// Bounds is an element's bounding box in CSS pixels.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ElementRef describes one interactive element found on a page, addressed by
// a selector the model can feed back into click and type actions.
type ElementRef struct {
	Selector  string  `json:"selector"`
	Tag       string  `json:"tag"`
	Text      string  `json:"text,omitempty"`
	AriaLabel string  `json:"aria_label,omitempty"`
	Bounds    *Bounds `json:"bounds,omitempty"`
}

// PageState is an immutable snapshot of the page at one point in time.
// Snapshots are never mutated after capture; each observation produces a new
// value, so a history of them stays internally consistent.
type PageState struct {
	URL        string       `json:"url"`
	Title      string       `json:"title"`
	HTML       string       `json:"html"`
	Elements   []ElementRef `json:"interactive_elements"`
	Truncated  bool         `json:"truncated,omitempty"`
	CapturedAt time.Time    `json:"captured_at"`
}

// ElementCount returns the number of interactive elements in the snapshot.
func (p *PageState) ElementCount() int {
	if p == nil {
		return 0
	}
	return len(p.Elements)
}
