// Package translate turns a natural-language instruction plus the current
// page state into exactly one browser action by asking a language model.
//
// The translator is deliberately narrow: one Translate call makes one model
// call and either returns a validated action or a typed TranslationError.
// It never retries and never invents an action from unusable output; retry
// policy belongs to the caller, which knows the task's budgets.
package translate

import (
	"context"

	"github.com/entrhq/drover/pkg/llm"
	"github.com/entrhq/drover/pkg/llm/tokenizer"
	"github.com/entrhq/drover/pkg/logging"
	"github.com/entrhq/drover/pkg/types"
)

var translateLog *logging.Logger

func init() {
	var err error
	translateLog, err = logging.NewLogger("translator")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		translateLog.Warnf("failed to initialize translator logger, using stderr fallback: %v", err)
	}
}

// Config bounds the prompt the translator composes. Every input is capped,
// so prompt size stays bounded no matter how large the page or history grow.
type Config struct {
	// MaxPromptTokens caps the composed user prompt. History is dropped
	// oldest first, then HTML is halved, until the prompt fits.
	MaxPromptTokens int

	// MaxHTMLBytes caps the sanitized HTML included in the prompt.
	MaxHTMLBytes int

	// MaxElements caps the interactive elements listed in the prompt.
	MaxElements int

	// MaxHistory caps the action results included in the prompt.
	MaxHistory int
}

// DefaultConfig returns the bounds used for zero-valued fields.
func DefaultConfig() Config {
	return Config{
		MaxPromptTokens: 6000,
		MaxHTMLBytes:    20000,
		MaxElements:     40,
		MaxHistory:      10,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxPromptTokens <= 0 {
		c.MaxPromptTokens = def.MaxPromptTokens
	}
	if c.MaxHTMLBytes <= 0 {
		c.MaxHTMLBytes = def.MaxHTMLBytes
	}
	if c.MaxElements <= 0 {
		c.MaxElements = def.MaxElements
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = def.MaxHistory
	}
	return c
}

// Translator converts instructions into actions through an LLM provider.
type Translator struct {
	provider llm.Provider
	tok      *tokenizer.Tokenizer
	cfg      Config
}

// New creates a translator backed by the given provider.
func New(provider llm.Provider, cfg Config) *Translator {
	return &Translator{
		provider: provider,
		tok:      tokenizer.ForModel(provider.GetModel()),
		cfg:      cfg.withDefaults(),
	}
}

// Translate asks the model for the single next action toward instruction
// given the current page and the action history. It makes exactly one model
// call and returns the action together with the model's reasoning summary.
//
// Failures are typed: transport and provider errors come back as
// model_unavailable, output that cannot be turned into a valid action as
// malformed_response with a short excerpt of the offending output.
func (t *Translator) Translate(ctx context.Context, instruction string, page *types.PageState, history []*types.ActionResult) (*types.Action, string, error) {
	messages := []*types.Message{
		types.NewSystemMessage(systemPrompt),
		types.NewUserMessage(t.buildUserPrompt(instruction, page, history)),
	}

	response, err := t.provider.Complete(ctx, messages)
	if err != nil {
		translateLog.Warnf("model call failed: %v", err)
		return nil, "", types.NewModelUnavailableError(err)
	}

	action, reasoning, err := parseAction(response.Content)
	if err != nil {
		translateLog.Warnf("discarded model output: %v", err)
		return nil, "", err
	}

	translateLog.Debugf("translated to %s", action.String())
	return action, reasoning, nil
}
