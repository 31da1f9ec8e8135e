package task

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/drover/pkg/humanize"
	"github.com/entrhq/drover/pkg/logging"
	"github.com/entrhq/drover/pkg/types"
)

var taskLog *logging.Logger

func init() {
	var err error
	taskLog, err = logging.NewLogger("task")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		taskLog.Warnf("failed to initialize task logger, using stderr fallback: %v", err)
	}
}

// Executor drives one task at a time against one browser session. The
// session is exclusively owned: pair each task with its own Executor and
// Browser, the way the engine does.
type Executor struct {
	browser    Browser
	translator Translator
	human      *humanize.Humanizer
	reporter   Reporter
	sink       ScreenshotSink
	cfg        Config
}

// Option configures an Executor.
type Option func(*Executor)

// WithReporter registers an additional reporter that receives every event
// after the handle's channel, in emission order.
func WithReporter(r Reporter) Option {
	return func(e *Executor) {
		e.reporter = r
	}
}

// WithScreenshotSink registers a sink for post-action screenshots. Only
// consulted when Config.CaptureScreenshots is set.
func WithScreenshotSink(s ScreenshotSink) Option {
	return func(e *Executor) {
		e.sink = s
	}
}

// New creates an executor. A nil humanizer gets default pacing.
func New(browser Browser, translator Translator, human *humanize.Humanizer, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		browser:    browser,
		translator: translator,
		human:      human,
		cfg:        cfg.withDefaults(),
	}
	if e.human == nil {
		e.human = humanize.New(humanize.DefaultConfig())
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins executing the instruction in its own goroutine and returns
// the task's handle immediately.
func (e *Executor) Start(ctx context.Context, instruction string) *Handle {
	taskCtx, cancel := context.WithCancel(ctx)
	h := newHandle(uuid.New().String(), cancel, e.cfg.EventBuffer)
	go e.run(taskCtx, h, instruction)
	return h
}

// taskRun is the mutable per-task state, owned by the task goroutine.
type taskRun struct {
	id          string
	instruction string
	history     []*types.ActionResult
	steps       int
	page        *types.PageState
	seq         uint64
	startedAt   time.Time
	reporter    Reporter
	handle      *Handle
}

func (t *taskRun) nextSeq() uint64 {
	t.seq++
	return t.seq
}

func (t *taskRun) emit(event *types.Event) {
	t.reporter.Report(event)
}

// run is the task loop. Every exit path goes through exactly one terminal
// helper, so every task ends with exactly one terminal event.
func (e *Executor) run(ctx context.Context, h *Handle, instruction string) {
	defer h.events.Close()
	defer h.cancel()

	t := &taskRun{
		id:          h.id,
		instruction: instruction,
		startedAt:   time.Now(),
		reporter:    h.events,
		handle:      h,
	}
	if e.reporter != nil {
		t.reporter = NewMultiReporter(h.events, e.reporter)
	}

	taskLog.Infof("[%s] task started: %s", shortID(t.id), instruction)

	for {
		// Abort and budgets are checked between steps; an in-flight
		// action finishes but no new one starts.
		if h.aborted() {
			e.abortTask(t, "aborted by caller")
			return
		}
		if ctx.Err() != nil {
			e.abortTask(t, "context canceled")
			return
		}
		if t.steps >= e.cfg.MaxSteps {
			e.exceedBudget(t, fmt.Sprintf("step budget exceeded (%d steps)", e.cfg.MaxSteps))
			return
		}
		if elapsed := time.Since(t.startedAt); elapsed >= e.cfg.MaxDuration {
			e.exceedBudget(t, fmt.Sprintf("time budget exceeded (%s elapsed)", elapsed.Round(time.Millisecond)))
			return
		}

		if t.page == nil {
			t.page = e.observe(ctx, t)
		}

		action, reasoning, err := e.translateStep(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				e.abortTask(t, abortReason(h))
				return
			}
			e.failTask(t, types.ErrorKindTranslation, err.Error())
			return
		}

		// An abort that raced the translation wins over its action,
		// finish included.
		if h.aborted() || ctx.Err() != nil {
			e.abortTask(t, abortReason(h))
			return
		}

		if action.IsFinish() {
			t.history = append(t.history, finishResult(action))
			e.declareFinish(t, action)
			return
		}

		result := e.executeAction(ctx, t, action)
		if ctx.Err() != nil && !result.Success {
			// Interrupted mid-action; the next loop iteration turns
			// this into the terminal abort.
			t.page = nil
			continue
		}

		t.history = append(t.history, result)
		t.steps++
		t.page = result.Page

		if result.Success {
			t.emit(types.NewActionEvent(t.id, t.nextSeq(), t.steps, result, reasoning))
			e.captureScreenshot(ctx, t)
			e.pause(ctx, action)
			continue
		}

		if e.cfg.StopOnActionError {
			e.failTask(t, result.Error.Kind, result.Error.Message)
			return
		}
		taskLog.Warnf("[%s] step %d: %s failed: %s", shortID(t.id), t.steps, action.Type, result.Error.Message)
		t.emit(types.NewErrorEvent(t.id, t.nextSeq(), result.Error.Kind, result.Error.Message, false))
	}
}

// observe captures the page state for the next translation. Snapshot
// failures degrade to an empty state instead of failing the task; the model
// sees a blank page and usually recovers by navigating.
func (e *Executor) observe(ctx context.Context, t *taskRun) *types.PageState {
	actx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()

	page, err := e.browser.Snapshot(actx)
	if err != nil {
		taskLog.Warnf("[%s] snapshot failed: %v", shortID(t.id), err)
		return &types.PageState{CapturedAt: time.Now()}
	}
	return page
}

// translateStep asks the model for the next action, retrying failures with
// exponential backoff up to the configured bound. Rejected output joins a
// step-local view of the history so the retry sees what went wrong; the
// canonical history records only executed actions.
func (e *Executor) translateStep(ctx context.Context, t *taskRun) (*types.Action, string, error) {
	history := t.history
	backoff := e.cfg.RetryBackoff

	for attempt := 0; ; attempt++ {
		tctx, cancel := context.WithTimeout(ctx, e.cfg.TranslateTimeout)
		action, reasoning, err := e.translator.Translate(tctx, t.instruction, t.page, history)
		cancel()
		if err == nil {
			return action, reasoning, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		if attempt >= e.cfg.TranslationRetries {
			return nil, "", err
		}

		taskLog.Warnf("[%s] translation attempt %d/%d failed: %v",
			shortID(t.id), attempt+1, e.cfg.TranslationRetries+1, err)
		t.emit(types.NewErrorEvent(t.id, t.nextSeq(), types.ErrorKindTranslation, err.Error(), false))

		if te, ok := types.AsTranslationError(err); ok && te.Reason == types.TranslationMalformed {
			history = appendDiscarded(history, te)
		}
		if sleepCtx(ctx, backoff) != nil {
			return nil, "", ctx.Err()
		}
		backoff *= 2
	}
}

// appendDiscarded adds a synthetic entry describing rejected model output
// without touching the canonical history's backing array.
func appendDiscarded(history []*types.ActionResult, te *types.TranslationError) []*types.ActionResult {
	entry := &types.ActionResult{
		Action: &types.Action{},
		Error:  types.NewActionError(types.ErrorKindTranslation, "%s", te.Detail),
		At:     time.Now(),
	}
	out := make([]*types.ActionResult, len(history), len(history)+1)
	copy(out, history)
	return append(out, entry)
}

// executeAction runs one translated action, retrying transient failures.
// On success the result carries a fresh snapshot, which is the page state
// the next translation consumes.
func (e *Executor) executeAction(ctx context.Context, t *taskRun, action *types.Action) *types.ActionResult {
	result := &types.ActionResult{Action: action, At: time.Now()}
	backoff := e.cfg.RetryBackoff

	var output string
	var err error
	for attempt := 0; ; attempt++ {
		output, err = e.perform(ctx, action)
		if err == nil || ctx.Err() != nil {
			break
		}
		if !transient(err) || attempt >= e.cfg.ActionRetries {
			break
		}
		taskLog.Warnf("[%s] %s attempt %d/%d failed: %v",
			shortID(t.id), action.Type, attempt+1, e.cfg.ActionRetries+1, err)
		if sleepCtx(ctx, backoff) != nil {
			break
		}
		backoff *= 2
	}
	result.Duration = time.Since(result.At)

	if err != nil {
		result.Error = asActionError(err, fallbackKind(action))
		return result
	}

	result.Success = true
	result.Output = output

	actx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()
	if page, snapErr := e.browser.Snapshot(actx); snapErr == nil {
		result.Page = page
	} else {
		taskLog.Warnf("[%s] post-action snapshot failed: %v", shortID(t.id), snapErr)
	}
	return result
}

// perform executes one attempt of the action. Wait is owned here: it is a
// context-aware sleep, never a browser call.
func (e *Executor) perform(ctx context.Context, action *types.Action) (string, error) {
	if action.Type == types.ActionTypeWait {
		seconds := math.Min(action.Seconds, maxWaitSeconds)
		if err := sleepCtx(ctx, time.Duration(seconds*float64(time.Second))); err != nil {
			return "", err
		}
		return fmt.Sprintf("waited %gs", seconds), nil
	}

	actx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()

	switch action.Type {
	case types.ActionTypeNavigate:
		return "", e.browser.Navigate(actx, action.URL)
	case types.ActionTypeClick:
		return "", e.browser.Click(actx, action.Selector)
	case types.ActionTypeType:
		plan := e.human.TypingPlan(action.Text)
		return "", e.browser.Type(actx, action.Selector, action.Text, plan, action.PressEnter)
	case types.ActionTypePress:
		return "", e.browser.Press(actx, action.Keys)
	case types.ActionTypeScroll:
		return "", e.browser.Scroll(actx, action.Direction, action.Selector)
	case types.ActionTypeExtract:
		return e.browser.Extract(actx, action.Query)
	default:
		return "", types.NewActionError(types.ErrorKindTranslation, "unsupported action type %q", action.Type)
	}
}

// pause inserts the humanized gap between consecutive actions. Waits pause
// on their own and navigation already settles inside the session, so both
// skip the extra delay.
func (e *Executor) pause(ctx context.Context, action *types.Action) {
	if action.Type == types.ActionTypeWait || action.Type == types.ActionTypeNavigate {
		return
	}
	_ = sleepCtx(ctx, e.human.ActionDelay())
}

func (e *Executor) captureScreenshot(ctx context.Context, t *taskRun) {
	if !e.cfg.CaptureScreenshots {
		return
	}
	actx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()

	shot, err := e.browser.Screenshot(actx)
	if err != nil {
		taskLog.Warnf("[%s] screenshot failed: %v", shortID(t.id), err)
		return
	}
	if e.sink != nil {
		e.sink.SaveScreenshot(t.id, t.steps, shot)
	}
}

// declareFinish ends the task the way the model declared it. Declared
// outcomes are lifecycle statements, so both directions emit status events;
// mechanical failures go through failTask instead.
func (e *Executor) declareFinish(t *taskRun, action *types.Action) {
	status := types.TaskStatusFailed
	if action.Succeeded() {
		status = types.TaskStatusCompleted
	}
	e.terminate(t, status, action.Reason,
		types.NewStatusEvent(t.id, t.nextSeq(), status, action.Reason))
}

func (e *Executor) abortTask(t *taskRun, reason string) {
	e.terminate(t, types.TaskStatusAborted, reason,
		types.NewStatusEvent(t.id, t.nextSeq(), types.TaskStatusAborted, reason))
}

func (e *Executor) exceedBudget(t *taskRun, reason string) {
	e.terminate(t, types.TaskStatusAborted, reason,
		types.NewErrorEvent(t.id, t.nextSeq(), types.ErrorKindBudgetExceeded, reason, true))
}

func (e *Executor) failTask(t *taskRun, kind types.ErrorKind, reason string) {
	e.terminate(t, types.TaskStatusFailed, reason,
		types.NewErrorEvent(t.id, t.nextSeq(), kind, reason, true))
}

// terminate records the final result, releases waiters, and emits the one
// terminal event. Exactly one call per task.
func (e *Executor) terminate(t *taskRun, status types.TaskStatus, reason string, event *types.Event) {
	t.handle.complete(&types.TaskResult{
		TaskID:      t.id,
		Instruction: t.instruction,
		Status:      status,
		Reason:      reason,
		Steps:       t.steps,
		Duration:    time.Since(t.startedAt),
		History:     t.history,
	})
	t.emit(event)
	taskLog.Infof("[%s] task %s after %d steps: %s", shortID(t.id), status, t.steps, reason)
}

func finishResult(action *types.Action) *types.ActionResult {
	return &types.ActionResult{
		Action:  action,
		Success: action.Succeeded(),
		At:      time.Now(),
	}
}

// transient reports whether an action failure is worth replaying as-is.
// Timeouts and navigation hiccups are; a missing element is not, the page
// simply does not have it.
func transient(err error) bool {
	if ae, ok := types.AsActionError(err); ok {
		return ae.Kind == types.ErrorKindTimeout || ae.Kind == types.ErrorKindNavigation
	}
	return false
}

// asActionError normalizes any failure into the typed form results carry.
func asActionError(err error, fallback types.ErrorKind) *types.ActionError {
	if ae, ok := types.AsActionError(err); ok {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return types.NewActionError(types.ErrorKindTimeout, "%v", err)
	}
	return types.NewActionError(fallback, "%v", err)
}

func fallbackKind(action *types.Action) types.ErrorKind {
	switch action.Type {
	case types.ActionTypeNavigate:
		return types.ErrorKindNavigation
	case types.ActionTypeWait:
		return types.ErrorKindTimeout
	default:
		return types.ErrorKindElementNotFound
	}
}

func abortReason(h *Handle) string {
	if h.aborted() {
		return "aborted by caller"
	}
	return "context canceled"
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shortID trims a uuid to its first group for log lines.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
