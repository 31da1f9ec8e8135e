// Package tokenizer counts tokens for prompt budgeting.
//
// Counting uses tiktoken encodings when available and degrades to a
// characters-per-token approximation when the encoding cannot be loaded
// (air-gapped environments, unknown models). Budget enforcement only needs
// counts that are roughly right and strictly monotonic in text length.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/entrhq/drover/pkg/types"
)

// fallbackEncoding covers models tiktoken doesn't know by name.
const fallbackEncoding = "cl100k_base"

// perMessageOverhead approximates the framing tokens each chat message costs
// beyond its content.
const perMessageOverhead = 4

// Tokenizer counts tokens for one model's encoding.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// ForModel returns a tokenizer for the given model. It never fails: unknown
// models fall back to the cl100k_base encoding, and when no encoding can be
// loaded at all the tokenizer approximates.
func ForModel(model string) *Tokenizer {
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return &Tokenizer{enc: enc}
	}
	if enc, err := tiktoken.GetEncoding(fallbackEncoding); err == nil {
		return &Tokenizer{enc: enc}
	}
	return &Tokenizer{}
}

// Count returns the token count of text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return approxTokens(text)
}

// CountMessages returns the approximate token cost of a chat request,
// including per-message framing overhead.
func (t *Tokenizer) CountMessages(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += t.Count(msg.Content) + perMessageOverhead
	}
	return total
}

// approxTokens estimates one token per four bytes, the usual rule of thumb
// for English text under BPE encodings.
func approxTokens(text string) int {
	return (len(text) + 3) / 4
}
