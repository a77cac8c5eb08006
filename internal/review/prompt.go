package review

import (
	"go.uber.org/zap"

	"github.com/BaSui01/agentflow/internal/tokenizer"
)

// Truncator enforces the ≈800-token prompt budget of spec §4.4 by
// encoding through tiktoken rather than counting raw characters, so a
// budget survives multi-byte text unchanged in meaning. tiktoken's first
// use lazily initializes its encoding table; if that fails (offline,
// corrupt cache) Truncate falls back to a rune-count clip so a Retrieval
// Gateway or LLM outage is never compounded by a tokenizer outage.
type Truncator struct {
	enc    *tokenizer.TiktokenTokenizer
	logger *zap.Logger
}

// NewTruncator builds a Truncator using the tokenizer encoding
// associated with model (falling back to cl100k_base for unknown
// models, per tokenizer.NewTiktokenTokenizer).
func NewTruncator(model string, logger *zap.Logger) *Truncator {
	enc, _ := tokenizer.NewTiktokenTokenizer(model) // never errors at construction
	return &Truncator{enc: enc, logger: logger}
}

// Truncate clips text to at most budget tokens (or runes, on tokenizer
// fallback). Returns text unchanged if it already fits.
func (t *Truncator) Truncate(text string, budget int) string {
	if text == "" || budget <= 0 {
		return text
	}

	tokens, err := t.enc.Encode(text)
	if err != nil {
		t.logger.Warn("tiktoken encode failed, falling back to rune truncation", zap.Error(err))
		return truncateRunes(text, budget)
	}
	if len(tokens) <= budget {
		return text
	}

	truncated, err := t.enc.Decode(tokens[:budget])
	if err != nil {
		t.logger.Warn("tiktoken decode failed, falling back to rune truncation", zap.Error(err))
		return truncateRunes(text, budget)
	}
	return truncated
}

// truncateRunes clips text to at most n runes, never splitting a
// multi-byte rune.
func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
