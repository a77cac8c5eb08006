// Package tokenizer adapts tiktoken-go encodings to the subset the
// review stages need: encode a prompt to tokens, decode a token slice
// back to text. It does not carry the teacher's full multi-provider
// token-counting registry, since nothing in this module needs anything
// beyond budget-truncation of a single prompt.
package tokenizer

import (
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer wraps a tiktoken encoding for one model.
type TiktokenTokenizer struct {
	model    string
	encoding string

	enc     *tiktoken.Tiktoken
	once    sync.Once
	initErr error
}

var modelEncodings = map[string]string{
	"gpt-4o":      "o200k_base",
	"gpt-4o-mini": "o200k_base",
	"gpt-4-turbo": "cl100k_base",
	"gpt-4":       "cl100k_base",
	"gpt-3.5":     "cl100k_base",
}

// NewTiktokenTokenizer builds a tokenizer for model, falling back to
// cl100k_base for any model without (or with an unrecognized prefix
// for) a known encoding.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	encoding, ok := modelEncodings[model]
	if !ok {
		for prefix, enc := range modelEncodings {
			if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				encoding, ok = enc, true
				break
			}
		}
	}
	if !ok {
		encoding = "cl100k_base"
	}

	return &TiktokenTokenizer{model: model, encoding: encoding}, nil
}

// init lazily initializes the tiktoken encoding on first use, since
// loading the encoding table can hit the network on a cold cache.
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Encode converts text to its token IDs.
func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	if err := t.init(); err != nil {
		return nil, err
	}
	return t.enc.Encode(text, nil, nil), nil
}

// Decode converts token IDs back to text.
func (t *TiktokenTokenizer) Decode(tokens []int) (string, error) {
	if err := t.init(); err != nil {
		return "", err
	}
	return t.enc.Decode(tokens), nil
}
