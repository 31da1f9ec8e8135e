package humanize

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestTypingPlanProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("without typos the plan has exactly one keystroke per rune", prop.ForAll(
		func(text string, seed int64) bool {
			cfg := DefaultConfig()
			cfg.TypoProbability = 0
			cfg.Rng = rand.New(rand.NewSource(seed))

			plan := New(cfg).TypingPlan(text)
			runes := []rune(text)
			if len(plan) != len(runes) {
				return false
			}
			for i, ks := range plan {
				if ks.Backspace || ks.Rune != runes[i] {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
		gen.Int64(),
	))

	properties.Property("with certain typos every rune is preceded by a correction", prop.ForAll(
		func(text string, seed int64) bool {
			cfg := DefaultConfig()
			cfg.TypoProbability = 1
			cfg.Rng = rand.New(rand.NewSource(seed))

			plan := New(cfg).TypingPlan(text)
			runes := []rune(text)
			if len(plan) != 3*len(runes) {
				return false
			}
			for i, r := range runes {
				wrong, backspace, correct := plan[3*i], plan[3*i+1], plan[3*i+2]
				if wrong.Backspace || wrong.Rune == r {
					return false
				}
				if !backspace.Backspace {
					return false
				}
				if correct.Backspace || correct.Rune != r {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.Int64(),
	))

	properties.Property("every delay stays within the configured key bounds", prop.ForAll(
		func(text string, seed int64, typoPct int) bool {
			cfg := DefaultConfig()
			cfg.TypoProbability = float64(typoPct) / 100
			cfg.Rng = rand.New(rand.NewSource(seed))

			for _, ks := range New(cfg).TypingPlan(text) {
				if ks.Delay < cfg.MinKeyDelay || ks.Delay > cfg.MaxKeyDelay {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
		gen.Int64(),
		gen.IntRange(0, 100),
	))

	properties.Property("the same seed reproduces the same plan", prop.ForAll(
		func(text string, seed int64) bool {
			cfg := DefaultConfig()
			cfg.TypoProbability = 0.25

			first := cfg
			first.Rng = rand.New(rand.NewSource(seed))
			second := cfg
			second.Rng = rand.New(rand.NewSource(seed))

			return reflect.DeepEqual(
				New(first).TypingPlan(text),
				New(second).TypingPlan(text),
			)
		},
		gen.AnyString(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
