// Package tokenizer provides token-count estimation for prompt and chunk
// sizing. The shared tokenizer is the only process-wide state in the
// pipeline and is immutable after initialization.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// Tokenizer counts tokens for a text. Safe for concurrent use.
type Tokenizer struct {
	enc       *tiktoken.Tiktoken
	heuristic bool
}

var (
	sharedOnce sync.Once
	shared     *Tokenizer
)

// Shared returns the process-wide tokenizer, loading the encoding on first
// use. If the encoding cannot be loaded the tokenizer degrades to the
// length-based heuristic.
func Shared() *Tokenizer {
	sharedOnce.Do(func() {
		shared = New()
	})
	return shared
}

// New creates a tokenizer, falling back to the heuristic when the encoding
// is unavailable (e.g. no cached BPE data and no network).
func New() *Tokenizer {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &Tokenizer{heuristic: true}
	}
	return &Tokenizer{enc: enc}
}

// Count returns the token count for text. Always at least 1, so that every
// non-empty candidate chunk has a positive size and empty strings still
// reserve capacity when batched.
func (t *Tokenizer) Count(text string) int {
	if t.enc == nil {
		return heuristicCount(text)
	}

	n := len(t.enc.Encode(text, nil, nil))
	if n < 1 {
		return 1
	}
	return n
}

// Heuristic reports whether counts come from the length heuristic rather
// than the exact encoder.
func (t *Tokenizer) Heuristic() bool {
	return t.heuristic
}

// Encoding returns the name of the active encoding.
func (t *Tokenizer) Encoding() string {
	if t.heuristic {
		return "heuristic"
	}
	return encodingName
}

// heuristicCount approximates tokens as one per four bytes.
func heuristicCount(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}
