// Package browser drives real Chromium pages through Playwright on behalf
// of the task executor.
//
// The package is built around two core concepts:
//
//  1. Session: one browser, context, and page owned by a single task
//  2. Manager: launches Playwright and tracks every live session
//
// # Session Lifecycle
//
// Sessions follow this lifecycle:
//
//  1. Create: Manager.NewSession launches a fresh Chromium with a stealth
//     profile (randomized viewport and user agent, automation flags hidden)
//  2. Use: the executor calls Navigate, Click, Type, Press, Scroll, Extract,
//     Snapshot, and Screenshot as the model directs
//  3. Close: the executor closes the session when its task reaches a
//     terminal state; the Manager also closes idle sessions and everything
//     left at Shutdown
//
// # Observations
//
// Snapshot is the executor's window into the page: it returns the current
// URL, title, sanitized HTML, and the visible interactive elements with
// stable selectors. Raw page HTML is never handed to the model; the
// sanitizer strips scripts, styles, and event handlers and caps the size.
//
// # Safety
//
// Every session carries a navigation guard. URLs are checked against glob
// allow and block lists before any navigation; a block match always wins.
//
// # Example Usage
//
//	manager := browser.NewManager()
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	defer manager.Shutdown()
//
//	session, err := manager.NewSession(browser.SessionOptions{Headless: true})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	if err := session.Navigate(ctx, "https://example.com"); err != nil {
//	    return err
//	}
//	page, err := session.Snapshot(ctx)
package browser
