package task

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/drover/pkg/humanize"
	"github.com/entrhq/drover/pkg/types"
)

// stubBrowser records every call in order and pops scripted failures per
// operation.
type stubBrowser struct {
	mu       sync.Mutex
	calls    []string
	url      string
	failures map[string][]error
}

func newStubBrowser() *stubBrowser {
	return &stubBrowser{failures: make(map[string][]error)}
}

func (b *stubBrowser) failNext(op string, errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], errs...)
}

func (b *stubBrowser) record(call, op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	if queue := b.failures[op]; len(queue) > 0 {
		err := queue[0]
		b.failures[op] = queue[1:]
		return err
	}
	return nil
}

func (b *stubBrowser) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *stubBrowser) Snapshot(ctx context.Context) (*types.PageState, error) {
	if err := b.record("snapshot", "snapshot"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.PageState{URL: b.url, Title: "stub page", HTML: "<html></html>", CapturedAt: time.Now()}, nil
}

func (b *stubBrowser) Navigate(ctx context.Context, url string) error {
	if err := b.record("navigate "+url, "navigate"); err != nil {
		return err
	}
	b.mu.Lock()
	b.url = url
	b.mu.Unlock()
	return nil
}

func (b *stubBrowser) Click(ctx context.Context, selector string) error {
	return b.record("click "+selector, "click")
}

func (b *stubBrowser) Type(ctx context.Context, selector, text string, plan []humanize.Keystroke, pressEnter bool) error {
	return b.record(fmt.Sprintf("type %s %q", selector, text), "type")
}

func (b *stubBrowser) Press(ctx context.Context, keys []string) error {
	return b.record("press "+strings.Join(keys, "+"), "press")
}

func (b *stubBrowser) Scroll(ctx context.Context, direction, selector string) error {
	return b.record("scroll "+direction, "scroll")
}

func (b *stubBrowser) Extract(ctx context.Context, query string) (string, error) {
	if err := b.record("extract "+query, "extract"); err != nil {
		return "", err
	}
	return "extracted text", nil
}

func (b *stubBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	if err := b.record("screenshot", "screenshot"); err != nil {
		return nil, err
	}
	return []byte("png-bytes"), nil
}

func (b *stubBrowser) Close() error {
	return b.record("close", "close")
}

type translateReply struct {
	action    *types.Action
	reasoning string
	err       error
}

// stubTranslator replays scripted replies (the last one repeats) and records
// the history passed to each call. The optional entered/gate channels let
// tests freeze a call mid-flight.
type stubTranslator struct {
	mu        sync.Mutex
	replies   []translateReply
	calls     int
	histories [][]*types.ActionResult

	entered chan struct{}
	gate    chan struct{}
}

func (s *stubTranslator) Translate(ctx context.Context, instruction string, page *types.PageState, history []*types.ActionResult) (*types.Action, string, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	s.histories = append(s.histories, append([]*types.ActionResult(nil), history...))
	entered, gate := s.entered, s.gate
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	reply := s.replies[idx]
	return reply.action, reply.reasoning, reply.err
}

func (s *stubTranslator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu    sync.Mutex
	shots []string
}

func (s *recordingSink) SaveScreenshot(taskID string, step int, png []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots = append(s.shots, fmt.Sprintf("step %d: %d bytes", step, len(png)))
}

// testHumanizer uses nanosecond pacing so tests never actually wait.
func testHumanizer() *humanize.Humanizer {
	return humanize.New(humanize.Config{
		TypoProbability: 0,
		MinKeyDelay:     time.Nanosecond,
		MaxKeyDelay:     time.Nanosecond,
		MinActionDelay:  time.Nanosecond,
		MaxActionDelay:  time.Nanosecond,
		MinSettleDelay:  time.Nanosecond,
		MaxSettleDelay:  time.Nanosecond,
		Rng:             rand.New(rand.NewSource(7)),
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

// collectEvents drains the handle's channel until it closes, returning every
// event in delivery order.
func collectEvents(t *testing.T, h *Handle) []*types.Event {
	t.Helper()
	var events []*types.Event
	for ev := range h.Events() {
		events = append(events, ev)
	}
	return events
}

func TestExecutorSearchScenario(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewNavigateAction("https://google.com"), reasoning: "open the search engine"},
		{action: types.NewTypeAction("#search", "cricket", true), reasoning: "enter the query"},
		{action: types.NewFinishAction("search results visible", true)},
	}}

	exec := New(browser, translator, testHumanizer(), testConfig())
	h := exec.Start(context.Background(), "Search for cricket on Google")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusCompleted, result.Status)
	assert.Equal(t, "search results visible", result.Reason)
	assert.Equal(t, 2, result.Steps, "finish never consumes a step")
	require.Len(t, result.History, 3)
	assert.Equal(t, types.ActionTypeNavigate, result.History[0].Action.Type)
	assert.Equal(t, types.ActionTypeType, result.History[1].Action.Type)
	assert.True(t, result.History[2].Action.IsFinish())
	assert.True(t, result.History[0].Success)
	assert.True(t, result.History[1].Success)

	events := collectEvents(t, h)
	require.Len(t, events, 3)
	assert.Equal(t, types.EventTypeAction, events[0].Type)
	assert.Equal(t, types.EventTypeAction, events[1].Type)
	assert.Equal(t, types.EventTypeStatus, events[2].Type)
	assert.Equal(t, types.TaskStatusCompleted, events[2].Data.Status)
	assert.True(t, events[2].IsTerminal())
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, h.ID(), ev.TaskID)
	}
	assert.Equal(t, 1, events[0].Data.Step)
	assert.Equal(t, 2, events[1].Data.Step)
	assert.Equal(t, "https://google.com", events[0].Data.URL)
	assert.Equal(t, "open the search engine", events[0].Data.Reasoning)

	assert.Equal(t, []string{
		"snapshot",
		"navigate https://google.com",
		"snapshot",
		`type #search "cricket"`,
		"snapshot",
	}, browser.callLog(), "no browser calls after the terminal transition")
	assert.Equal(t, 3, translator.callCount())
}

func TestExecutorFailsWhenTranslationRetriesExhausted(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{err: types.NewMalformedResponseError("no JSON in model output")},
	}}

	cfg := testConfig()
	cfg.TranslationRetries = 2

	exec := New(browser, translator, testHumanizer(), cfg)
	h := exec.Start(context.Background(), "do something")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusFailed, result.Status)
	assert.Equal(t, 3, translator.callCount(), "exactly bound+1 translator calls")
	assert.Empty(t, result.History)
	assert.Zero(t, result.Steps)

	events := collectEvents(t, h)
	require.Len(t, events, 3)
	for _, ev := range events[:2] {
		assert.Equal(t, types.EventTypeError, ev.Type)
		assert.False(t, ev.IsTerminal())
	}
	assert.Equal(t, types.EventTypeError, events[2].Type)
	assert.True(t, events[2].IsTerminal())
	assert.Equal(t, types.ErrorKindTranslation, events[2].Data.Kind)

	// Each retry saw the rejected output as an observation, never a blind
	// replay of the same request.
	require.Len(t, translator.histories, 3)
	assert.Empty(t, translator.histories[0])
	require.Len(t, translator.histories[1], 1)
	assert.Equal(t, types.ErrorKindTranslation, translator.histories[1][0].Error.Kind)
	require.Len(t, translator.histories[2], 2)
}

func TestExecutorRetriesModelUnavailable(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{err: types.NewModelUnavailableError(errors.New("connection refused"))},
		{action: types.NewFinishAction("nothing to do", true)},
	}}

	exec := New(browser, translator, testHumanizer(), testConfig())
	h := exec.Start(context.Background(), "idle task")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusCompleted, result.Status)
	assert.Equal(t, 2, translator.callCount())

	events := collectEvents(t, h)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventTypeError, events[0].Type)
	assert.False(t, events[0].IsTerminal())
	assert.Equal(t, types.EventTypeStatus, events[1].Type)

	// Transport failures carry no observation for the model to act on.
	assert.Empty(t, translator.histories[1])
}

func TestExecutorFailsOnDeclaredFinishFailure(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewFinishAction("page requires a login", false)},
	}}

	exec := New(browser, translator, testHumanizer(), testConfig())
	h := exec.Start(context.Background(), "read the dashboard")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusFailed, result.Status)
	assert.Equal(t, "page requires a login", result.Reason)
	require.Len(t, result.History, 1)
	assert.False(t, result.History[0].Success)

	events := collectEvents(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventTypeStatus, events[0].Type)
	assert.Equal(t, types.TaskStatusFailed, events[0].Data.Status)
	assert.True(t, events[0].IsTerminal())

	assert.Equal(t, []string{"snapshot"}, browser.callLog())
}

func TestExecutorSurfacesActionFailureToNextTranslation(t *testing.T) {
	browser := newStubBrowser()
	browser.failNext("click", types.NewActionError(types.ErrorKindElementNotFound, "no element matched #missing"))
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewClickAction("#missing")},
		{action: types.NewClickAction("#present")},
		{action: types.NewFinishAction("done", true)},
	}}

	exec := New(browser, translator, testHumanizer(), testConfig())
	h := exec.Start(context.Background(), "click through")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Steps, "failed actions consume budget too")
	require.Len(t, result.History, 3)
	assert.False(t, result.History[0].Success)
	assert.Equal(t, types.ErrorKindElementNotFound, result.History[0].Error.Kind)

	events := collectEvents(t, h)
	require.Len(t, events, 3)
	assert.Equal(t, types.EventTypeError, events[0].Type)
	assert.Equal(t, types.ErrorKindElementNotFound, events[0].Data.Kind)
	assert.False(t, events[0].IsTerminal())
	assert.Equal(t, types.EventTypeAction, events[1].Type)
	assert.Equal(t, types.EventTypeStatus, events[2].Type)

	// A missing element is never retried as-is; the page state is observed
	// again and the failure lands in the next translation's history.
	assert.Equal(t, []string{
		"snapshot",
		"click #missing",
		"snapshot",
		"click #present",
		"snapshot",
	}, browser.callLog())
	require.Len(t, translator.histories, 3)
	require.Len(t, translator.histories[1], 1)
	assert.False(t, translator.histories[1][0].Success)
}

func TestExecutorStopOnActionError(t *testing.T) {
	browser := newStubBrowser()
	browser.failNext("click", types.NewActionError(types.ErrorKindElementNotFound, "no element matched #missing"))
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewClickAction("#missing")},
	}}

	cfg := testConfig()
	cfg.StopOnActionError = true

	exec := New(browser, translator, testHumanizer(), cfg)
	h := exec.Start(context.Background(), "click once")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusFailed, result.Status)
	require.Len(t, result.History, 1)

	events := collectEvents(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventTypeError, events[0].Type)
	assert.Equal(t, types.ErrorKindElementNotFound, events[0].Data.Kind)
	assert.True(t, events[0].IsTerminal())
}

func TestExecutorRetriesTransientActionFailures(t *testing.T) {
	browser := newStubBrowser()
	browser.failNext("navigate",
		types.NewActionError(types.ErrorKindTimeout, "page load timed out"),
		types.NewActionError(types.ErrorKindNavigation, "net::ERR_CONNECTION_RESET"))
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewNavigateAction("https://flaky.example.com")},
		{action: types.NewFinishAction("loaded", true)},
	}}

	cfg := testConfig()
	cfg.ActionRetries = 2

	exec := New(browser, translator, testHumanizer(), cfg)
	h := exec.Start(context.Background(), "open the flaky site")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusCompleted, result.Status)
	assert.Equal(t, 1, result.Steps)
	assert.True(t, result.History[0].Success)

	assert.Equal(t, []string{
		"snapshot",
		"navigate https://flaky.example.com",
		"navigate https://flaky.example.com",
		"navigate https://flaky.example.com",
		"snapshot",
	}, browser.callLog())

	// Transient retries are internal; no error events ride the stream.
	events := collectEvents(t, h)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventTypeAction, events[0].Type)
	assert.Equal(t, types.EventTypeStatus, events[1].Type)
}

func TestExecutorAbortsOnStepBudget(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewClickAction("#more")},
	}}

	cfg := testConfig()
	cfg.MaxSteps = 3

	exec := New(browser, translator, testHumanizer(), cfg)
	h := exec.Start(context.Background(), "keep clicking")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusAborted, result.Status)
	assert.Equal(t, 3, result.Steps, "step count never exceeds the budget")
	assert.Contains(t, result.Reason, "step budget exceeded")

	events := collectEvents(t, h)
	require.Len(t, events, 4)
	for _, ev := range events[:3] {
		assert.Equal(t, types.EventTypeAction, ev.Type)
	}
	assert.Equal(t, types.EventTypeError, events[3].Type)
	assert.Equal(t, types.ErrorKindBudgetExceeded, events[3].Data.Kind)
	assert.True(t, events[3].IsTerminal())
}

func TestExecutorAbortsOnTimeBudget(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewClickAction("#anything")},
	}}

	cfg := testConfig()
	cfg.MaxDuration = time.Nanosecond

	exec := New(browser, translator, testHumanizer(), cfg)
	h := exec.Start(context.Background(), "too slow")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusAborted, result.Status)
	assert.Zero(t, result.Steps)
	assert.Contains(t, result.Reason, "time budget exceeded")
	assert.Zero(t, translator.callCount())
	assert.Empty(t, browser.callLog())

	events := collectEvents(t, h)
	require.Len(t, events, 1)
	assert.Equal(t, types.ErrorKindBudgetExceeded, events[0].Data.Kind)
	assert.True(t, events[0].IsTerminal())
}

func TestExecutorAbortWinsRaceWithCompletingStep(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{
		replies: []translateReply{
			{action: types.NewFinishAction("all done", true)},
		},
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}

	exec := New(browser, translator, testHumanizer(), testConfig())
	h := exec.Start(context.Background(), "finish soon")

	<-translator.entered
	h.Abort()
	close(translator.gate)

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusAborted, result.Status)
	assert.Equal(t, "aborted by caller", result.Reason)
	assert.Empty(t, result.History, "the raced finish is discarded")

	events := collectEvents(t, h)
	terminal := 0
	for _, ev := range events {
		if ev.IsTerminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
	assert.Equal(t, types.TaskStatusAborted, events[len(events)-1].Data.Status)
}

func TestExecutorAbortAfterTerminalIsNoOp(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewFinishAction("done", true)},
	}}

	exec := New(browser, translator, testHumanizer(), testConfig())
	h := exec.Start(context.Background(), "quick task")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, result.Status)

	h.Abort()
	assert.Equal(t, types.TaskStatusCompleted, h.Status())
	assert.Equal(t, types.TaskStatusCompleted, h.Result().Status)
}

func TestExecutorWaitActionSleepsWithoutBrowser(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewWaitAction(0.01)},
		{action: types.NewFinishAction("waited", true)},
	}}

	exec := New(browser, translator, testHumanizer(), testConfig())
	h := exec.Start(context.Background(), "wait a moment")

	result, err := h.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.TaskStatusCompleted, result.Status)
	assert.Equal(t, 1, result.Steps)
	assert.Equal(t, "waited 0.01s", result.History[0].Output)

	// The wait itself never touches the browser; only observation does.
	assert.Equal(t, []string{"snapshot", "snapshot"}, browser.callLog())
}

func TestExecutorCapturesScreenshots(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewNavigateAction("https://example.com")},
		{action: types.NewFinishAction("done", true)},
	}}
	sink := &recordingSink{}

	cfg := testConfig()
	cfg.CaptureScreenshots = true

	exec := New(browser, translator, testHumanizer(), cfg, WithScreenshotSink(sink))
	h := exec.Start(context.Background(), "open the site")

	_, err := h.Wait(context.Background())
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.shots, 1)
	assert.Equal(t, "step 1: 9 bytes", sink.shots[0])
	assert.Contains(t, browser.callLog(), "screenshot")
}

func TestExecutorMirrorsEventsToExtraReporter(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{replies: []translateReply{
		{action: types.NewNavigateAction("https://example.com")},
		{action: types.NewFinishAction("done", true)},
	}}

	var mu sync.Mutex
	var mirrored []uint64
	mirror := ReporterFunc(func(ev *types.Event) {
		mu.Lock()
		defer mu.Unlock()
		mirrored = append(mirrored, ev.Seq)
	})

	exec := New(browser, translator, testHumanizer(), testConfig(), WithReporter(mirror))
	h := exec.Start(context.Background(), "open the site")

	_, err := h.Wait(context.Background())
	require.NoError(t, err)

	events := collectEvents(t, h)
	require.Len(t, events, 2)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2}, mirrored)
}

func TestHandleWaitRespectsContext(t *testing.T) {
	browser := newStubBrowser()
	translator := &stubTranslator{
		replies: []translateReply{
			{action: types.NewFinishAction("done", true)},
		},
		entered: make(chan struct{}, 1),
		gate:    make(chan struct{}),
	}

	exec := New(browser, translator, testHumanizer(), testConfig())
	h := exec.Start(context.Background(), "slow task")
	<-translator.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.TaskStatusRunning, h.Status())
	assert.Nil(t, h.Result())

	close(translator.gate)
	result, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusCompleted, result.Status)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, DefaultMaxDuration, cfg.MaxDuration)
	assert.Equal(t, DefaultTranslationRetries, cfg.TranslationRetries)
	assert.Equal(t, DefaultRetryBackoff, cfg.RetryBackoff)
	assert.Equal(t, DefaultEventBuffer, cfg.EventBuffer)
	assert.False(t, cfg.StopOnActionError)

	custom := Config{MaxSteps: 3}.withDefaults()
	assert.Equal(t, 3, custom.MaxSteps)
	assert.Equal(t, DefaultMaxDuration, custom.MaxDuration)
}
