package browser

import (
	"sync"
	"time"
)

// Screenshot is one captured frame with the URL it was taken on.
type Screenshot struct {
	Data    []byte
	URL     string
	TakenAt time.Time
}

// ScreenshotHistory keeps a bounded, browsable record of the frames a
// session captured. Capture always appends at the end; when the bound is
// hit the oldest frame falls off. Safe for concurrent use, so a streaming
// consumer can browse while the task keeps capturing.
type ScreenshotHistory struct {
	mu      sync.RWMutex
	frames  []Screenshot
	maxSize int
	cursor  int
}

// NewScreenshotHistory creates a history bounded to maxSize frames.
func NewScreenshotHistory(maxSize int) *ScreenshotHistory {
	if maxSize <= 0 {
		maxSize = DefaultMaxScreenshots
	}
	return &ScreenshotHistory{maxSize: maxSize, cursor: -1}
}

// Capture appends a frame and moves the cursor to it.
func (h *ScreenshotHistory) Capture(data []byte, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.frames = append(h.frames, Screenshot{
		Data:    data,
		URL:     url,
		TakenAt: time.Now(),
	})
	if len(h.frames) > h.maxSize {
		h.frames = h.frames[1:]
	}
	h.cursor = len(h.frames) - 1
}

// Current returns the frame under the cursor, or nil when empty.
func (h *ScreenshotHistory) Current() *Screenshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frameAt(h.cursor)
}

// Prev moves the cursor one frame back and returns it. At the oldest frame
// it stays put.
func (h *ScreenshotHistory) Prev() *Screenshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor > 0 {
		h.cursor--
	}
	return h.frameAt(h.cursor)
}

// Next moves the cursor one frame forward and returns it. At the newest
// frame it stays put.
func (h *ScreenshotHistory) Next() *Screenshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < len(h.frames)-1 {
		h.cursor++
	}
	return h.frameAt(h.cursor)
}

// Reset moves the cursor back to the newest frame.
func (h *ScreenshotHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cursor = len(h.frames) - 1
}

// Len returns the number of stored frames.
func (h *ScreenshotHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.frames)
}

// frameAt returns a copy of the frame at index i. Callers hold the lock.
func (h *ScreenshotHistory) frameAt(i int) *Screenshot {
	if i < 0 || i >= len(h.frames) {
		return nil
	}
	frame := h.frames[i]
	return &frame
}
