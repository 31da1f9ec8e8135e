package browser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/drover/pkg/types"
)

// Guard decides whether a session may navigate to a URL. Patterns are globs
// matched against both the full URL and the bare hostname, so "*.ads.com"
// blocks a domain while "https://internal/*" blocks a path prefix.
type Guard struct {
	allow []glob.Glob
	block []glob.Glob
}

// NewGuard compiles the allow and block patterns. A block match always wins.
// An empty allow list allows every URL that is not blocked.
func NewGuard(allowed, blocked []string) (*Guard, error) {
	allow, err := compilePatterns(allowed)
	if err != nil {
		return nil, fmt.Errorf("allow pattern: %w", err)
	}
	block, err := compilePatterns(blocked)
	if err != nil {
		return nil, fmt.Errorf("block pattern: %w", err)
	}
	return &Guard{allow: allow, block: block}, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	var compiled []glob.Glob
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// Check returns nil if rawURL may be navigated to, or a navigation error
// describing which policy rejected it.
func (g *Guard) Check(rawURL string) error {
	if g == nil {
		return nil
	}

	host := hostOf(rawURL)
	for _, b := range g.block {
		if b.Match(rawURL) || (host != "" && b.Match(host)) {
			return types.NewActionError(types.ErrorKindNavigation, "navigation to %q blocked by policy", rawURL)
		}
	}

	if len(g.allow) == 0 {
		return nil
	}
	for _, a := range g.allow {
		if a.Match(rawURL) || (host != "" && a.Match(host)) {
			return nil
		}
	}
	return types.NewActionError(types.ErrorKindNavigation, "navigation to %q is outside the allowed URLs", rawURL)
}

// hostOf extracts the hostname of a URL, tolerating bare hosts without a
// scheme. Returns "" when no host can be determined.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if u.Host == "" && !strings.Contains(rawURL, "://") {
		if u, err = url.Parse("https://" + rawURL); err != nil {
			return ""
		}
	}
	return u.Hostname()
}
