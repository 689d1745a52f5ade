// Package embedding provides vector embedding generation for memory content.
// It wraps provider HTTP APIs (Ollama, OpenAI) with circuit breaker
// protection, client-side rate limiting, and an LRU cache, and hosts the
// cosine similarity and token counting helpers the engine uses.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when an empty string is submitted for embedding.
var ErrEmptyInput = errors.New("embedding: empty input text")

// Provider generates fixed-dimension vector embeddings for text.
type Provider interface {
	// Embed returns the embedding vector for text. Errors propagate as
	// embedding failures; the engine does not retry.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimension the provider produces.
	Dimension() int

	// Model returns the configured model name.
	Model() string
}
