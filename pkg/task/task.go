// Package task runs one natural-language instruction to completion against a
// live browser session.
//
// The executor is a sequential state machine: Running until a terminal state
// (Completed, Failed, or Aborted) is reached, with exactly one event emitted
// per transition and exactly one terminal event per task. Each step observes
// the page, asks the translator for the single next action, executes it with
// humanized pacing, and appends the result to an append-only history.
//
// The executor owns retry policy. Transient failures (model unavailable,
// timeouts, flaky navigation) retry with exponential backoff up to their
// bounds; malformed model output and missing elements are never replayed
// blindly, they are surfaced to the next translation as observations. Step
// and wall-clock budgets abort the task cooperatively: the in-flight action
// finishes, no new one starts.
//
// Callers interact through a Handle: an ordered event channel, Abort, and
// Wait. Abort wins any race with a completing step.
package task

import (
	"context"
	"time"

	"github.com/entrhq/drover/pkg/humanize"
	"github.com/entrhq/drover/pkg/types"
)

// Browser is the set of page operations the executor drives. It is the
// contract implemented by *browser.Session; tests substitute stubs.
//
// Every operation must leave the page in a settled state before returning.
// Close is for the session's owner, the executor never calls it.
type Browser interface {
	Snapshot(ctx context.Context) (*types.PageState, error)
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string, plan []humanize.Keystroke, pressEnter bool) error
	Press(ctx context.Context, keys []string) error
	Scroll(ctx context.Context, direction, selector string) error
	Extract(ctx context.Context, query string) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Translator produces the next action for an instruction given the current
// page and the history so far. One call, one model invocation.
type Translator interface {
	Translate(ctx context.Context, instruction string, page *types.PageState, history []*types.ActionResult) (*types.Action, string, error)
}

// Reporter receives task events in emission order. Report may block; a slow
// consumer slows the task down rather than reordering or dropping events.
type Reporter interface {
	Report(event *types.Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(event *types.Event)

// Report calls f(event).
func (f ReporterFunc) Report(event *types.Event) {
	f(event)
}

// ScreenshotSink receives a screenshot after each completed action when
// capture is enabled.
type ScreenshotSink interface {
	SaveScreenshot(taskID string, step int, png []byte)
}

// Defaults for zero-valued Config fields.
const (
	DefaultMaxSteps           = 25
	DefaultMaxDuration        = 5 * time.Minute
	DefaultTranslationRetries = 2
	DefaultActionRetries      = 2
	DefaultRetryBackoff       = 500 * time.Millisecond
	DefaultActionTimeout      = 60 * time.Second
	DefaultTranslateTimeout   = 60 * time.Second
	DefaultEventBuffer        = 64

	// maxWaitSeconds caps a single wait action so a confused model cannot
	// stall a task for its whole time budget.
	maxWaitSeconds = 30.0
)

// Config bounds a task run. The three timeout levels are independent:
// ActionTimeout covers one browser action attempt, TranslateTimeout one
// model call, MaxDuration the whole task.
type Config struct {
	// MaxSteps aborts the task once this many actions have executed.
	MaxSteps int

	// MaxDuration aborts the task once this much wall-clock time has
	// elapsed, checked between steps.
	MaxDuration time.Duration

	// TranslationRetries is how many times a failed translation is
	// retried within one step before the task fails. The translator is
	// called at most TranslationRetries+1 times per step.
	TranslationRetries int

	// ActionRetries is how many times a transient action failure is
	// retried before the failure stands.
	ActionRetries int

	// RetryBackoff is the initial pause before a retry; it doubles on
	// each subsequent attempt.
	RetryBackoff time.Duration

	// ActionTimeout bounds one browser action attempt.
	ActionTimeout time.Duration

	// TranslateTimeout bounds one model call.
	TranslateTimeout time.Duration

	// StopOnActionError fails the task on the first action failure
	// instead of surfacing the failure to the next translation.
	StopOnActionError bool

	// CaptureScreenshots takes a screenshot after each completed action.
	CaptureScreenshots bool

	// EventBuffer is the handle's event channel capacity. Once full,
	// event emission blocks the task until the consumer catches up.
	EventBuffer int
}

// DefaultConfig returns the standard task bounds.
func DefaultConfig() Config {
	return Config{
		MaxSteps:           DefaultMaxSteps,
		MaxDuration:        DefaultMaxDuration,
		TranslationRetries: DefaultTranslationRetries,
		ActionRetries:      DefaultActionRetries,
		RetryBackoff:       DefaultRetryBackoff,
		ActionTimeout:      DefaultActionTimeout,
		TranslateTimeout:   DefaultTranslateTimeout,
		EventBuffer:        DefaultEventBuffer,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = def.MaxSteps
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = def.MaxDuration
	}
	if c.TranslationRetries <= 0 {
		c.TranslationRetries = def.TranslationRetries
	}
	if c.ActionRetries <= 0 {
		c.ActionRetries = def.ActionRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = def.RetryBackoff
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = def.ActionTimeout
	}
	if c.TranslateTimeout <= 0 {
		c.TranslateTimeout = def.TranslateTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	return c
}
