package embedding

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// defaultEncoding is the BPE encoding used for token counting. cl100k_base
// matches the GPT-3.5/4 family and is a reasonable approximation for other
// models too.
const defaultEncoding = "cl100k_base"

// TokenCounter estimates the token size of memory content for LLM context
// budgeting. It uses a tiktoken BPE encoding when available and falls back to
// the chars/4 heuristic when the encoding cannot be loaded (e.g. offline
// environments where the BPE file is not cached).
type TokenCounter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter returns a TokenCounter. Encoding initialization is lazy so
// construction never fails.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the approximate token count of text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			log.Printf("embedding: tiktoken encoding unavailable, using heuristic token counts: %v", err)
			return
		}
		c.encoding = enc
	})

	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// estimateTokens approximates token count at roughly 4 characters per token,
// rounding up.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
