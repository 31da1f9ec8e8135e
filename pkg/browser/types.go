package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/drover/pkg/humanize"
)

// Session owns one Chromium browser, context, and page for the lifetime of
// a single task. Methods are not safe for concurrent use; a session belongs
// to exactly one executor goroutine.
type Session struct {
	id         string
	browser    playwright.Browser
	context    playwright.BrowserContext
	page       playwright.Page
	guard      *Guard
	human      *humanize.Humanizer
	opts       SessionOptions
	createdAt  time.Time
	lastUsedAt time.Time
	currentURL string

	screenshots *ScreenshotHistory
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// Viewport sets the viewport size. Nil picks a randomized desktop
	// viewport from the stealth profile.
	Viewport *Viewport

	// UserAgent overrides the user agent. Empty picks a randomized desktop
	// Chrome agent from the stealth profile.
	UserAgent string

	// Timeout is the default timeout for page operations in milliseconds.
	Timeout float64

	// AllowedURLs and BlockedURLs are glob patterns matched against
	// navigation targets. A block match always wins; an empty allow list
	// allows everything not blocked.
	AllowedURLs []string
	BlockedURLs []string

	// Humanizer paces clicks, settle delays, and key presses. Nil creates
	// one with default pacing.
	Humanizer *humanize.Humanizer

	// MaxHTMLBytes caps the sanitized HTML in snapshots.
	MaxHTMLBytes int

	// MaxElements caps the interactive elements in snapshots.
	MaxElements int

	// MaxExtractBytes caps the text returned by Extract.
	MaxExtractBytes int

	// MaxScreenshots caps the session's screenshot history.
	MaxScreenshots int
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// SessionInfo contains metadata about a live browser session.
type SessionInfo struct {
	ID         string
	CurrentURL string
	Headless   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Default values for session operations
const (
	DefaultTimeout         = 30000.0 // 30 seconds in milliseconds
	DefaultMaxHTMLBytes    = 40000
	DefaultMaxElements     = 80
	DefaultMaxExtractBytes = 10000
	DefaultMaxScreenshots  = 20
	DefaultMaxSessions     = 5
	DefaultIdleTimeout     = 300 // 5 minutes in seconds

	// scrollStep is the wheel delta for one scroll action in CSS pixels.
	scrollStep = 600
)

// withDefaults fills the zero-valued knobs so callers can pass a partial
// options struct.
func (o SessionOptions) withDefaults() SessionOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxHTMLBytes <= 0 {
		o.MaxHTMLBytes = DefaultMaxHTMLBytes
	}
	if o.MaxElements <= 0 {
		o.MaxElements = DefaultMaxElements
	}
	if o.MaxExtractBytes <= 0 {
		o.MaxExtractBytes = DefaultMaxExtractBytes
	}
	if o.MaxScreenshots <= 0 {
		o.MaxScreenshots = DefaultMaxScreenshots
	}
	if o.Humanizer == nil {
		o.Humanizer = humanize.New(humanize.DefaultConfig())
	}
	return o
}
