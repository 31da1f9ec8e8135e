package browser

import (
	"math/rand"
)

// stealthProfile is the per-session fingerprint: a desktop viewport and
// user agent drawn at random so parallel sessions do not look identical,
// plus the launch flags and init script that hide automation markers.
type stealthProfile struct {
	userAgent string
	viewport  Viewport
	locale    string
	timezone  string
	args      []string
}

// Recent desktop Chrome agents. Versions are close enough to the bundled
// Chromium that sites see a consistent story.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// stealthInitScript runs before any page script and removes the automation
// markers headless Chromium leaves behind.
const stealthInitScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
`

// newStealthProfile draws a fingerprint for one session.
func newStealthProfile(rng *rand.Rand) stealthProfile {
	return stealthProfile{
		userAgent: userAgents[rng.Intn(len(userAgents))],
		viewport: Viewport{
			Width:  1200 + rng.Intn(201),
			Height: 700 + rng.Intn(101),
		},
		locale:   "en-US",
		timezone: "America/New_York",
		args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--no-default-browser-check",
		},
	}
}
