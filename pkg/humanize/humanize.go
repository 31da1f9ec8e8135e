// Package humanize plans human-like pacing for browser interaction: typing
// cadence with occasional corrected typos, pauses between actions, and click
// points that land inside an element rather than on its exact corner.
//
// The package only plans. It never sleeps, touches the page, or performs
// I/O; executing a plan is the session's job. All randomness flows through
// one injectable source, so a seeded Humanizer is fully deterministic.
//
// A Humanizer is not safe for concurrent use. Create one per task.
package humanize

import (
	"math/rand"
	"time"
	"unicode"

	"github.com/entrhq/drover/pkg/types"
)

// Config controls pacing bounds and typo behavior.
type Config struct {
	// TypoProbability is the chance per character of typing a wrong
	// neighboring key first and correcting it. Range [0, 1].
	TypoProbability float64

	// Key delay bounds for individual keystrokes.
	MinKeyDelay time.Duration
	MaxKeyDelay time.Duration

	// Pause bounds between consecutive actions.
	MinActionDelay time.Duration
	MaxActionDelay time.Duration

	// Pause bounds after a navigation, letting the page settle the way a
	// person scans a freshly loaded page before acting.
	MinSettleDelay time.Duration
	MaxSettleDelay time.Duration

	// Rng is the random source. A nil Rng is seeded from the clock;
	// inject a seeded source for reproducible plans.
	Rng *rand.Rand
}

// DefaultConfig returns the standard pacing bounds.
func DefaultConfig() Config {
	return Config{
		TypoProbability: 0.08,
		MinKeyDelay:     50 * time.Millisecond,
		MaxKeyDelay:     200 * time.Millisecond,
		MinActionDelay:  300 * time.Millisecond,
		MaxActionDelay:  1500 * time.Millisecond,
		MinSettleDelay:  1 * time.Second,
		MaxSettleDelay:  3 * time.Second,
	}
}

// Keystroke is one step of a typing plan: either a rune to type or a
// backspace, preceded by Delay.
type Keystroke struct {
	Rune      rune
	Backspace bool
	Delay     time.Duration
}

// Humanizer plans typing and pacing from a single random source.
type Humanizer struct {
	cfg Config
	rng *rand.Rand
}

// New creates a Humanizer. Zero-valued config fields fall back to defaults,
// and a nil Rng is seeded from the current time.
func New(cfg Config) *Humanizer {
	defaults := DefaultConfig()
	if cfg.MinKeyDelay <= 0 {
		cfg.MinKeyDelay = defaults.MinKeyDelay
	}
	if cfg.MaxKeyDelay <= 0 {
		cfg.MaxKeyDelay = defaults.MaxKeyDelay
	}
	if cfg.MaxKeyDelay < cfg.MinKeyDelay {
		cfg.MaxKeyDelay = cfg.MinKeyDelay
	}
	if cfg.MinActionDelay <= 0 {
		cfg.MinActionDelay = defaults.MinActionDelay
	}
	if cfg.MaxActionDelay <= 0 {
		cfg.MaxActionDelay = defaults.MaxActionDelay
	}
	if cfg.MaxActionDelay < cfg.MinActionDelay {
		cfg.MaxActionDelay = cfg.MinActionDelay
	}
	if cfg.MinSettleDelay <= 0 {
		cfg.MinSettleDelay = defaults.MinSettleDelay
	}
	if cfg.MaxSettleDelay <= 0 {
		cfg.MaxSettleDelay = defaults.MaxSettleDelay
	}
	if cfg.MaxSettleDelay < cfg.MinSettleDelay {
		cfg.MaxSettleDelay = cfg.MinSettleDelay
	}
	if cfg.TypoProbability < 0 {
		cfg.TypoProbability = 0
	}
	if cfg.TypoProbability > 1 {
		cfg.TypoProbability = 1
	}

	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Humanizer{cfg: cfg, rng: rng}
}

// TypingPlan converts text into a sequence of keystrokes with human cadence.
//
// Every character gets a delay within the configured key bounds, stretched
// toward the maximum after word boundaries and compressed toward the minimum
// for repeated keys. With TypoProbability, a character is preceded by a
// wrong neighboring key and a backspace before the correct key lands.
func (h *Humanizer) TypingPlan(text string) []Keystroke {
	runes := []rune(text)
	plan := make([]Keystroke, 0, len(runes))

	var prev rune
	for _, r := range runes {
		if h.cfg.TypoProbability > 0 && h.rng.Float64() < h.cfg.TypoProbability {
			wrong := h.typoFor(r)
			plan = append(plan,
				Keystroke{Rune: wrong, Delay: h.keyDelay(prev, wrong)},
				Keystroke{Backspace: true, Delay: h.keyDelay(wrong, 0)},
			)
			prev = 0 // the correction resets the finger position
		}
		plan = append(plan, Keystroke{Rune: r, Delay: h.keyDelay(prev, r)})
		prev = r
	}

	return plan
}

// ActionDelay returns the pause to observe between two consecutive actions.
func (h *Humanizer) ActionDelay() time.Duration {
	return h.durationBetween(h.cfg.MinActionDelay, h.cfg.MaxActionDelay)
}

// SettleDelay returns the pause to observe after a navigation.
func (h *Humanizer) SettleDelay() time.Duration {
	return h.durationBetween(h.cfg.MinSettleDelay, h.cfg.MaxSettleDelay)
}

// PressDelay returns a short pause before a standalone key press.
func (h *Humanizer) PressDelay() time.Duration {
	return h.durationBetween(h.cfg.MinKeyDelay, h.cfg.MaxKeyDelay)
}

// ClickPoint picks a point inside the element bounds, offset a little from
// the top-left corner the way a real pointer lands. Elements too small for
// an offset are clicked in the center.
func (h *Humanizer) ClickPoint(b types.Bounds) (x, y float64) {
	const minOffset, maxOffset = 5.0, 15.0

	offsetX := minOffset + h.rng.Float64()*(maxOffset-minOffset)
	offsetY := minOffset + h.rng.Float64()*(maxOffset-minOffset)

	if b.Width > 2*maxOffset {
		x = b.X + offsetX
	} else {
		x = b.X + b.Width/2
	}
	if b.Height > 2*maxOffset {
		y = b.Y + offsetY
	} else {
		y = b.Y + b.Height/2
	}
	return x, y
}

// keyDelay picks a delay for typing curr after prev, clamped to the key
// bounds. prev of zero means no preceding key (start of text, or right
// after a correction).
func (h *Humanizer) keyDelay(prev, curr rune) time.Duration {
	min, max := h.cfg.MinKeyDelay, h.cfg.MaxKeyDelay
	d := h.durationBetween(min, max)
	span := max - min

	switch {
	case prev == 0:
		// no adjustment
	case unicode.IsSpace(prev) || unicode.IsPunct(prev):
		// word boundary: fingers travel back from the space bar
		d += span / 4
	case prev == curr:
		// same key again: the finger is already there
		d -= span / 4
	case unicode.IsUpper(curr):
		// reaching for shift
		d += span / 8
	}

	if d < min {
		d = min
	}
	if d > max {
		d = max
	}
	return d
}

// durationBetween returns a uniform duration in [min, max].
func (h *Humanizer) durationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(h.rng.Int63n(int64(max-min)+1))
}

// qwertyNeighbors maps each key to the keys adjacent to it on a QWERTY
// layout, used to pick plausible wrong characters for typos.
var qwertyNeighbors = map[rune]string{
	'a': "qwsz",
	'b': "vghn",
	'c': "xdfv",
	'd': "serfcx",
	'e': "wsdr",
	'f': "drtgvc",
	'g': "ftyhbv",
	'h': "gyujnb",
	'i': "ujko",
	'j': "huikmn",
	'k': "jiolm",
	'l': "kop",
	'm': "njk",
	'n': "bhjm",
	'o': "iklp",
	'p': "ol",
	'q': "wa",
	'r': "edft",
	's': "awedxz",
	't': "rfgy",
	'u': "yhji",
	'v': "cfgb",
	'w': "qase",
	'x': "zsdc",
	'y': "tghu",
	'z': "asx",
	'0': "9p",
	'1': "2q",
	'2': "13w",
	'3': "24e",
	'4': "35r",
	'5': "46t",
	'6': "57y",
	'7': "68u",
	'8': "79i",
	'9': "80o",
	' ': "cvbnm",
}

// typoFor picks a plausible wrong character for r: a neighboring key when
// the layout knows r, otherwise a random letter.
func (h *Humanizer) typoFor(r rune) rune {
	lower := unicode.ToLower(r)
	if neighbors, ok := qwertyNeighbors[lower]; ok {
		wrong := rune(neighbors[h.rng.Intn(len(neighbors))])
		if unicode.IsUpper(r) {
			wrong = unicode.ToUpper(wrong)
		}
		return wrong
	}

	wrong := rune('a' + h.rng.Intn(26))
	if wrong == lower {
		wrong = 'e' // any different letter will do
		if lower == 'e' {
			wrong = 'a'
		}
	}
	return wrong
}
