package browser

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// Manager owns the Playwright runtime and every live browser session.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	playwright  *playwright.Playwright
	rng         *rand.Rand
	maxSessions int
	idleTimeout time.Duration
	initialized bool
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		maxSessions: DefaultMaxSessions,
		idleTimeout: time.Duration(DefaultIdleTimeout) * time.Second,
	}
}

// Initialize installs and starts Playwright. It must be called before
// creating any sessions and is safe to call more than once.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Discard driver output so it cannot interleave with the CLI or TUI
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// NewSession launches a fresh browser with its own stealth fingerprint and
// registers it under a generated id.
func (m *Manager) NewSession(opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("session manager not initialized")
	}
	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", m.maxSessions)
	}

	opts = opts.withDefaults()
	profile := newStealthProfile(m.rng)
	if opts.Viewport == nil {
		opts.Viewport = &profile.viewport
	}
	if opts.UserAgent == "" {
		opts.UserAgent = profile.userAgent
	}

	guard, err := NewGuard(opts.AllowedURLs, opts.BlockedURLs)
	if err != nil {
		return nil, fmt.Errorf("invalid navigation policy: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args:     profile.args,
	}
	browser, err := m.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
		UserAgent:  &opts.UserAgent,
		Locale:     &profile.locale,
		TimezoneId: &profile.timezone,
	}
	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	script := stealthInitScript
	if err := context.AddInitScript(playwright.Script{Content: &script}); err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to install init script: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	now := time.Now()
	session := &Session{
		id:          uuid.New().String(),
		browser:     browser,
		context:     context,
		page:        page,
		guard:       guard,
		human:       opts.Humanizer,
		opts:        opts,
		createdAt:   now,
		lastUsedAt:  now,
		currentURL:  "about:blank",
		screenshots: NewScreenshotHistory(opts.MaxScreenshots),
	}

	m.sessions[session.id] = session
	return session, nil
}

// GetSession retrieves a live session by id.
func (m *Manager) GetSession(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, fmt.Errorf("session %q not found", id)
	}
	return session, nil
}

// CloseSession closes and removes a session.
func (m *Manager) CloseSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}

	err := session.Close()
	delete(m.sessions, id)
	return err
}

// ListSessions returns information about all live sessions.
func (m *Manager) ListSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		infos = append(infos, SessionInfo{
			ID:         session.id,
			CurrentURL: session.currentURL,
			Headless:   session.opts.Headless,
			CreatedAt:  session.createdAt,
			LastUsedAt: session.lastUsedAt,
		})
	}
	return infos
}

// HasSessions returns true if there are any live sessions.
func (m *Manager) HasSessions() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) > 0
}

// CleanupIdleSessions closes sessions idle longer than the idle timeout.
func (m *Manager) CleanupIdleSessions() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var errs []error
	for id, session := range m.sessions {
		if now.Sub(session.lastUsedAt) <= m.idleTimeout {
			continue
		}
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.sessions, id)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %v", errs)
	}
	return nil
}

// Shutdown closes every session and stops Playwright.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		_ = session.Close() // continue cleanup on error
		delete(m.sessions, id)
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}

// SetMaxSessions sets the maximum number of concurrent sessions.
func (m *Manager) SetMaxSessions(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSessions = max
}

// SetIdleTimeout sets the idle timeout duration.
func (m *Manager) SetIdleTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleTimeout = timeout
}
