package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/drover/pkg/humanize"
	"github.com/entrhq/drover/pkg/types"
)

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// CurrentURL returns the URL of the page as of the last operation.
func (s *Session) CurrentURL() string {
	return s.currentURL
}

// Screenshots returns the session's screenshot history.
func (s *Session) Screenshots() *ScreenshotHistory {
	return s.screenshots
}

func (s *Session) touch() {
	s.lastUsedAt = time.Now()
}

// Navigate loads url on the session's page. The navigation guard is checked
// first, then the page is loaded to DOMContentLoaded and given a humanized
// settle delay so late scripts can run before the next observation.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.touch()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.guard.Check(url); err != nil {
		return err
	}

	waitUntil := playwright.WaitUntilStateDomcontentloaded
	opts := playwright.PageGotoOptions{
		WaitUntil: waitUntil,
		Timeout:   &s.opts.Timeout,
	}
	if _, err := s.page.Goto(url, opts); err != nil {
		return types.NewActionError(errorKindFor(err, types.ErrorKindNavigation), "navigation to %s failed: %v", url, err)
	}

	s.currentURL = s.page.URL()
	return s.settle(ctx)
}

// Click clicks the first matching element. The selector may list several
// candidates separated by commas; each is tried in order so the model can
// express fallbacks in one action. When the element has a visible box the
// click lands on a humanized point inside it after a mouse move.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.touch()

	var lastErr error
	for _, candidate := range splitSelectors(selector) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = s.clickOne(candidate); lastErr == nil {
			s.currentURL = s.page.URL()
			return s.settle(ctx)
		}
	}
	if lastErr == nil {
		lastErr = types.NewActionError(types.ErrorKindElementNotFound, "empty selector")
	}
	return lastErr
}

func (s *Session) clickOne(selector string) error {
	handle, err := s.page.QuerySelector(selector)
	if err != nil {
		return types.NewActionError(types.ErrorKindElementNotFound, "selector %q query failed: %v", selector, err)
	}
	if handle == nil {
		return types.NewActionError(types.ErrorKindElementNotFound, "no element matches %q", selector)
	}

	if box, boxErr := handle.BoundingBox(); boxErr == nil && box != nil && box.Width > 0 && box.Height > 0 {
		x, y := s.human.ClickPoint(types.Bounds{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height})
		steps := 12
		if moveErr := s.page.Mouse().Move(x, y, playwright.MouseMoveOptions{Steps: &steps}); moveErr == nil {
			if clickErr := s.page.Mouse().Click(x, y); clickErr == nil {
				return nil
			}
		}
	}

	// No usable box, or the coordinate click failed. Let Playwright resolve
	// the element itself, which also handles scrolling it into view.
	opts := playwright.PageClickOptions{Timeout: &s.opts.Timeout}
	if err := s.page.Click(selector, opts); err != nil {
		return types.NewActionError(errorKindFor(err, types.ErrorKindElementNotFound), "click on %q failed: %v", selector, err)
	}
	return nil
}

// Type focuses the element, clears its current value, and replays the
// keystroke plan with each keystroke's own delay. Backspace keystrokes press
// the Backspace key so planned typo corrections happen on the real page.
// When pressEnter is set, Enter follows the last keystroke after a short
// humanized pause.
func (s *Session) Type(ctx context.Context, selector, text string, plan []humanize.Keystroke, pressEnter bool) error {
	s.touch()
	if err := ctx.Err(); err != nil {
		return err
	}

	clickOpts := playwright.PageClickOptions{Timeout: &s.opts.Timeout}
	if err := s.page.Click(selector, clickOpts); err != nil {
		return types.NewActionError(errorKindFor(err, types.ErrorKindElementNotFound), "focus on %q failed: %v", selector, err)
	}
	// Clear any existing value. Fill fails on contenteditable hosts, where
	// there is nothing to clear anyway.
	fillOpts := playwright.PageFillOptions{Timeout: &s.opts.Timeout}
	_ = s.page.Fill(selector, "", fillOpts)

	keyboard := s.page.Keyboard()
	if len(plan) == 0 && text != "" {
		// No pacing plan, type the text in one go.
		if err := keyboard.Type(text); err != nil {
			return types.NewActionError(types.ErrorKindElementNotFound, "typing into %q failed: %v", selector, err)
		}
	}
	for _, ks := range plan {
		if err := sleepCtx(ctx, ks.Delay); err != nil {
			return err
		}
		if ks.Backspace {
			if err := keyboard.Press("Backspace"); err != nil {
				return types.NewActionError(types.ErrorKindElementNotFound, "backspace in %q failed: %v", selector, err)
			}
			continue
		}
		if err := keyboard.Type(string(ks.Rune)); err != nil {
			return types.NewActionError(types.ErrorKindElementNotFound, "typing into %q failed: %v", selector, err)
		}
	}

	if pressEnter {
		if err := sleepCtx(ctx, s.human.PressDelay()); err != nil {
			return err
		}
		if err := keyboard.Press("Enter"); err != nil {
			return types.NewActionError(types.ErrorKindElementNotFound, "enter after %q failed: %v", selector, err)
		}
		s.currentURL = s.page.URL()
		return s.settle(ctx)
	}
	return nil
}

// Press presses each key in order with a short humanized pause between them.
// Key names are normalized, so "enter" and "Enter" both work, and combos
// like "Control+a" pass through untouched.
func (s *Session) Press(ctx context.Context, keys []string) error {
	s.touch()

	keyboard := s.page.Keyboard()
	for i, key := range keys {
		if i > 0 {
			if err := sleepCtx(ctx, s.human.PressDelay()); err != nil {
				return err
			}
		}
		if err := keyboard.Press(normalizeKey(key)); err != nil {
			return types.NewActionError(types.ErrorKindElementNotFound, "press %q failed: %v", key, err)
		}
	}
	s.currentURL = s.page.URL()
	return s.settle(ctx)
}

// Scroll scrolls the page one step up or down with the mouse wheel. With a
// selector it scrolls that element into view instead.
func (s *Session) Scroll(ctx context.Context, direction, selector string) error {
	s.touch()
	if err := ctx.Err(); err != nil {
		return err
	}

	if selector != "" {
		handle, err := s.page.QuerySelector(selector)
		if err != nil || handle == nil {
			return types.NewActionError(types.ErrorKindElementNotFound, "no element matches %q", selector)
		}
		if err := handle.ScrollIntoViewIfNeeded(); err != nil {
			return types.NewActionError(errorKindFor(err, types.ErrorKindElementNotFound), "scroll to %q failed: %v", selector, err)
		}
		return s.settle(ctx)
	}

	delta := float64(scrollStep)
	if direction == types.ScrollUp {
		delta = -delta
	}
	if err := s.page.Mouse().Wheel(0, delta); err != nil {
		return types.NewActionError(types.ErrorKindNavigation, "scroll failed: %v", err)
	}
	return s.settle(ctx)
}

// Extract returns the trimmed text of every element matching the query in
// the live page, joined by newlines and capped at the session's extract
// limit. An empty query extracts the whole body. A query matching nothing
// is not an error; it returns an empty string.
func (s *Session) Extract(ctx context.Context, query string) (string, error) {
	s.touch()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	content, err := s.page.Content()
	if err != nil {
		return "", types.NewActionError(errorKindFor(err, types.ErrorKindNavigation), "page content unavailable: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse page content: %w", err)
	}

	if strings.TrimSpace(query) == "" {
		query = "body"
	}
	matcher, err := cascadia.Compile(query)
	if err != nil {
		return "", types.NewActionError(types.ErrorKindElementNotFound, "invalid selector %q: %v", query, err)
	}

	var parts []string
	doc.FindMatcher(matcher).Each(func(_ int, sel *goquery.Selection) {
		if text := normalizeSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	result := strings.Join(parts, "\n")
	if len(result) > s.opts.MaxExtractBytes {
		result = result[:s.opts.MaxExtractBytes] + "..."
	}
	return result, nil
}

// Snapshot captures the current page state: URL, title, sanitized HTML, and
// the visible interactive elements. Each call produces a fresh value.
func (s *Session) Snapshot(ctx context.Context) (*types.PageState, error) {
	s.touch()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.page.Content()
	if err != nil {
		return nil, types.NewActionError(errorKindFor(err, types.ErrorKindNavigation), "page content unavailable: %v", err)
	}
	clean, err := sanitizeHTML(raw, s.opts.MaxHTMLBytes)
	if err != nil {
		return nil, fmt.Errorf("sanitize page: %w", err)
	}

	title, _ := s.page.Title()
	if title == "" {
		title = clean.Title
	}

	// Element collection is best effort. A page mid-navigation yields none,
	// and the snapshot is still useful without them.
	elements, err := s.collectElements(s.opts.MaxElements)
	if err != nil {
		elements = nil
	}

	s.currentURL = s.page.URL()
	return &types.PageState{
		URL:        s.currentURL,
		Title:      title,
		HTML:       clean.HTML,
		Elements:   elements,
		Truncated:  clean.Truncated,
		CapturedAt: time.Now(),
	}, nil
}

// Screenshot captures a PNG of the current viewport and records it in the
// session's history.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	s.touch()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	s.screenshots.Capture(data, s.page.URL())
	return data, nil
}

// Close releases the page, context, and browser.
func (s *Session) Close() error {
	_ = s.page.Close()    // continue cleanup on error
	_ = s.context.Close() // continue cleanup on error
	if err := s.browser.Close(); err != nil {
		return fmt.Errorf("browser close failed: %w", err)
	}
	return nil
}

// settle sleeps for a humanized settle delay, bailing out early when ctx is
// canceled.
func (s *Session) settle(ctx context.Context) error {
	return sleepCtx(ctx, s.human.SettleDelay())
}

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

// errorKindFor maps a driver error onto the closest action error kind.
// Timeouts are reported as such regardless of the operation that hit them.
func errorKindFor(err error, fallback types.ErrorKind) types.ErrorKind {
	if err == nil {
		return fallback
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return types.ErrorKindTimeout
	}
	return fallback
}

// splitSelectors splits a comma-separated selector list into candidates,
// leaving commas inside quoted attribute values alone.
func splitSelectors(selector string) []string {
	var (
		parts   []string
		current strings.Builder
		quote   rune
	)
	for _, r := range selector {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			current.WriteRune(r)
		case r == ',':
			if part := strings.TrimSpace(current.String()); part != "" {
				parts = append(parts, part)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if part := strings.TrimSpace(current.String()); part != "" {
		parts = append(parts, part)
	}
	return parts
}

// normalizeKey maps friendly key names onto the names Playwright expects.
// Unknown names pass through, which keeps combos like "Control+a" working.
func normalizeKey(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "enter", "return":
		return "Enter"
	case "tab":
		return "Tab"
	case "escape", "esc":
		return "Escape"
	case "backspace":
		return "Backspace"
	case "delete", "del":
		return "Delete"
	case "space", " ":
		return "Space"
	case "up", "arrowup":
		return "ArrowUp"
	case "down", "arrowdown":
		return "ArrowDown"
	case "left", "arrowleft":
		return "ArrowLeft"
	case "right", "arrowright":
		return "ArrowRight"
	case "pageup":
		return "PageUp"
	case "pagedown":
		return "PageDown"
	case "home":
		return "Home"
	case "end":
		return "End"
	}
	return key
}

// normalizeSpace collapses runs of whitespace into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
