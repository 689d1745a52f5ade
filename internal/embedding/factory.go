package embedding

import (
	"fmt"
	"time"
)

// ProviderSettings selects and tunes an embedding provider. The config
// package maps environment variables onto this struct.
type ProviderSettings struct {
	// Provider is "ollama" or "openai" (default: ollama).
	Provider string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// Model is the embedding model name (provider default when empty).
	Model string

	// APIKey authenticates hosted providers.
	APIKey string

	// Dimension is the expected vector dimension (provider default when 0).
	Dimension int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// CacheSize is the LRU cache capacity; 0 disables caching.
	CacheSize int

	// RequestsPerSecond enables client-side rate limiting when > 0.
	RequestsPerSecond float64

	// Burst is the rate limiter burst (default 1 when limiting is on).
	Burst int
}

// NewProvider builds the configured provider and applies the rate limiting
// and caching decorators. Decorator order matters: the cache sits outermost
// so cache hits do not consume rate limiter slots.
func NewProvider(cfg ProviderSettings) (Provider, error) {
	var p Provider

	switch cfg.Provider {
	case "openai":
		p = NewOpenAIClient(OpenAIConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
	case "ollama", "":
		p = NewOllamaClient(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("embedding: unsupported provider %q", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		p = NewRateLimitedProvider(p, cfg.RequestsPerSecond, cfg.Burst)
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCachingProvider(p, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		p = cached
	}

	return p, nil
}
