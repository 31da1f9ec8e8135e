package browser

import (
	"fmt"
	"sync"
	"testing"
)

func TestScreenshotHistoryCapture(t *testing.T) {
	h := NewScreenshotHistory(10)

	if h.Current() != nil {
		t.Error("Current() on empty history should be nil")
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}

	h.Capture([]byte("one"), "https://a.example")
	h.Capture([]byte("two"), "https://b.example")

	if h.Len() != 2 {
		t.Errorf("Len() = %d, want 2", h.Len())
	}
	current := h.Current()
	if current == nil || string(current.Data) != "two" {
		t.Errorf("Current() = %v, want frame two", current)
	}
	if current.URL != "https://b.example" {
		t.Errorf("URL = %q, want https://b.example", current.URL)
	}
}

func TestScreenshotHistoryBounded(t *testing.T) {
	h := NewScreenshotHistory(3)

	for i := 0; i < 5; i++ {
		h.Capture([]byte{byte('a' + i)}, fmt.Sprintf("https://page%d.example", i))
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}

	// Oldest frames fell off; the newest three remain.
	h.Reset()
	newest := h.Current()
	if string(newest.Data) != "e" {
		t.Errorf("newest frame = %q, want e", newest.Data)
	}
	h.Prev()
	oldest := h.Prev()
	if string(oldest.Data) != "c" {
		t.Errorf("oldest surviving frame = %q, want c", oldest.Data)
	}
}

func TestScreenshotHistoryNavigation(t *testing.T) {
	h := NewScreenshotHistory(10)
	h.Capture([]byte("one"), "u1")
	h.Capture([]byte("two"), "u2")
	h.Capture([]byte("three"), "u3")

	if got := h.Prev(); string(got.Data) != "two" {
		t.Errorf("Prev() = %q, want two", got.Data)
	}
	if got := h.Prev(); string(got.Data) != "one" {
		t.Errorf("Prev() = %q, want one", got.Data)
	}
	// At the oldest frame Prev stays put.
	if got := h.Prev(); string(got.Data) != "one" {
		t.Errorf("Prev() at start = %q, want one", got.Data)
	}
	if got := h.Next(); string(got.Data) != "two" {
		t.Errorf("Next() = %q, want two", got.Data)
	}

	h.Reset()
	if got := h.Current(); string(got.Data) != "three" {
		t.Errorf("Current() after Reset = %q, want three", got.Data)
	}
	// At the newest frame Next stays put.
	if got := h.Next(); string(got.Data) != "three" {
		t.Errorf("Next() at end = %q, want three", got.Data)
	}
}

func TestScreenshotHistoryCaptureMovesCursor(t *testing.T) {
	h := NewScreenshotHistory(10)
	h.Capture([]byte("one"), "u1")
	h.Capture([]byte("two"), "u2")
	h.Prev()

	h.Capture([]byte("three"), "u3")
	if got := h.Current(); string(got.Data) != "three" {
		t.Errorf("Current() after Capture = %q, want three", got.Data)
	}
}

func TestScreenshotHistoryConcurrent(t *testing.T) {
	h := NewScreenshotHistory(8)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Capture([]byte{byte(n)}, "u")
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Prev()
				h.Current()
				h.Next()
			}
		}()
	}
	wg.Wait()

	if h.Len() > 8 {
		t.Errorf("Len() = %d, want at most 8", h.Len())
	}
}
