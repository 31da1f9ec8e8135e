// Package engine wires the model provider, browser runtime, humanizer, and
// translator into a single facade. Each task gets its own browser session,
// humanizer, and executor; sessions are reclaimed when their task reaches a
// terminal state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/drover/pkg/browser"
	"github.com/entrhq/drover/pkg/config"
	"github.com/entrhq/drover/pkg/humanize"
	"github.com/entrhq/drover/pkg/llm"
	"github.com/entrhq/drover/pkg/llm/openai"
	"github.com/entrhq/drover/pkg/logging"
	"github.com/entrhq/drover/pkg/task"
	"github.com/entrhq/drover/pkg/translate"
)

var engineLog *logging.Logger

func init() {
	var err error
	engineLog, err = logging.NewLogger("engine")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		engineLog.Warnf("failed to initialize engine logger, using stderr fallback: %v", err)
	}
}

// ErrShutdown is returned by StartTask after the engine has been shut down.
var ErrShutdown = errors.New("engine is shut down")

// Engine starts and tracks tasks. Safe for concurrent use.
type Engine struct {
	cfg      *config.Config
	provider llm.Provider
	browsers *browser.Manager
	reporter task.Reporter
	sink     task.ScreenshotSink

	mu      sync.Mutex
	handles map[string]*task.Handle
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration. Nil keeps the defaults.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		if cfg != nil {
			e.cfg = cfg
		}
	}
}

// WithProvider sets the model provider. Without this option the engine
// builds an OpenAI provider from its configuration.
func WithProvider(provider llm.Provider) Option {
	return func(e *Engine) {
		e.provider = provider
	}
}

// WithBrowserManager sets the browser runtime owner, letting callers share
// one Playwright install across engines.
func WithBrowserManager(manager *browser.Manager) Option {
	return func(e *Engine) {
		e.browsers = manager
	}
}

// WithReporter registers a reporter that receives every event of every task,
// after each task's own channel.
func WithReporter(r task.Reporter) Option {
	return func(e *Engine) {
		e.reporter = r
	}
}

// WithScreenshotSink registers a sink for post-action screenshots. Only
// consulted when screenshot capture is enabled in the task configuration.
func WithScreenshotSink(s task.ScreenshotSink) Option {
	return func(e *Engine) {
		e.sink = s
	}
}

// New creates an engine. The browser runtime is not started here; it is
// initialized lazily by the first StartTask.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:     config.DefaultConfig(),
		handles: make(map[string]*task.Handle),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.provider == nil {
		provider, err := newProvider(e.cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create llm provider: %w", err)
		}
		e.provider = provider
	}

	if e.browsers == nil {
		e.browsers = browser.NewManager()
	}
	if e.cfg.Browser.MaxSessions > 0 {
		e.browsers.SetMaxSessions(e.cfg.Browser.MaxSessions)
	}
	return e, nil
}

func newProvider(cfg config.LLMConfig) (llm.Provider, error) {
	opts := []openai.ProviderOption{
		openai.WithModel(cfg.Model),
		openai.WithTemperature(cfg.Temperature),
		openai.WithJSONMode(),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, openai.WithRequestTimeout(cfg.RequestTimeout))
	}
	return openai.NewProvider(cfg.APIKey, opts...)
}

// StartTask launches the instruction as a new task with its own browser
// session and returns the task's handle.
func (e *Engine) StartTask(ctx context.Context, instruction string) (*task.Handle, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, fmt.Errorf("instruction is empty")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrShutdown
	}
	e.mu.Unlock()

	if err := e.browsers.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize browser runtime: %w", err)
	}

	human := e.newHumanizer()
	session, err := e.browsers.NewSession(e.sessionOptions(human))
	if err != nil {
		return nil, fmt.Errorf("failed to create browser session: %w", err)
	}

	translator := translate.New(e.provider, e.translateConfig())

	var opts []task.Option
	if e.reporter != nil {
		opts = append(opts, task.WithReporter(e.reporter))
	}
	if e.sink != nil {
		opts = append(opts, task.WithScreenshotSink(e.sink))
	}
	executor := task.New(session, translator, human, e.taskConfig(), opts...)

	handle := executor.Start(ctx, instruction)

	e.mu.Lock()
	e.handles[handle.ID()] = handle
	e.mu.Unlock()

	engineLog.Infof("task %s started on session %s", handle.ID(), session.ID())
	go e.reap(handle, session.ID())
	return handle, nil
}

// reap closes a task's browser session once the task reaches a terminal
// state. The handle stays registered so status queries keep working.
func (e *Engine) reap(h *task.Handle, sessionID string) {
	<-h.Done()

	if err := e.browsers.CloseSession(sessionID); err != nil {
		e.mu.Lock()
		closed := e.closed
		e.mu.Unlock()
		// Shutdown closes every session itself; only report leaks on a
		// live engine.
		if !closed {
			engineLog.Warnf("failed to close session %s for task %s: %v", sessionID, h.ID(), err)
		}
	}
}

// Task returns the handle of a known task.
func (e *Engine) Task(id string) (*task.Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[id]
	return h, ok
}

// Shutdown aborts every running task, waits for them to stop (bounded by
// ctx), and tears down the browser runtime. Safe to call more than once.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	handles := make([]*task.Handle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		h.Abort()
	}

	var firstErr error
	for _, h := range handles {
		if _, err := h.Wait(ctx); err != nil {
			firstErr = fmt.Errorf("task %s did not stop before the shutdown deadline: %w", h.ID(), err)
			break
		}
	}

	if err := e.browsers.Shutdown(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to shut down browser runtime: %w", err)
	}

	engineLog.Infof("engine shut down (%d tasks tracked)", len(handles))
	return firstErr
}

func (e *Engine) newHumanizer() *humanize.Humanizer {
	h := e.cfg.Humanize
	return humanize.New(humanize.Config{
		TypoProbability: h.TypoProbability,
		MinKeyDelay:     h.MinKeyDelay,
		MaxKeyDelay:     h.MaxKeyDelay,
		MinActionDelay:  h.MinActionDelay,
		MaxActionDelay:  h.MaxActionDelay,
		MinSettleDelay:  h.MinSettleDelay,
		MaxSettleDelay:  h.MaxSettleDelay,
	})
}

func (e *Engine) sessionOptions(human *humanize.Humanizer) browser.SessionOptions {
	b := e.cfg.Browser
	return browser.SessionOptions{
		Headless:        b.Headless,
		Timeout:         float64(b.OperationTimeout.Milliseconds()),
		AllowedURLs:     b.AllowedURLs,
		BlockedURLs:     b.BlockedURLs,
		Humanizer:       human,
		MaxHTMLBytes:    b.MaxHTMLBytes,
		MaxElements:     b.MaxElements,
		MaxExtractBytes: b.MaxExtractBytes,
		MaxScreenshots:  b.MaxScreenshots,
	}
}

func (e *Engine) translateConfig() translate.Config {
	l := e.cfg.LLM
	return translate.Config{
		MaxPromptTokens: l.MaxPromptTokens,
		MaxHTMLBytes:    l.MaxPromptHTMLBytes,
		MaxElements:     l.MaxPromptElements,
		MaxHistory:      l.MaxHistory,
	}
}

func (e *Engine) taskConfig() task.Config {
	t := e.cfg.Task
	return task.Config{
		MaxSteps:           t.MaxSteps,
		MaxDuration:        t.MaxDuration,
		TranslationRetries: t.TranslationRetries,
		ActionRetries:      t.ActionRetries,
		RetryBackoff:       t.RetryBackoff,
		ActionTimeout:      t.ActionTimeout,
		TranslateTimeout:   t.TranslateTimeout,
		StopOnActionError:  t.StopOnActionError,
		CaptureScreenshots: t.CaptureScreenshots,
	}
}
