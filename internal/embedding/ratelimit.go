package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider decorates a Provider with a client-side token bucket so
// batch sweeps and import jobs cannot flood the embedding API.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider wraps inner with a limiter of rps requests per
// second and the given burst.
func NewRateLimitedProvider(inner Provider, rps float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed blocks until the limiter grants a slot (or ctx is cancelled), then
// delegates.
func (p *RateLimitedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding: rate limiter wait: %w", err)
	}
	return p.inner.Embed(ctx, text)
}

// Dimension delegates to the wrapped provider.
func (p *RateLimitedProvider) Dimension() int { return p.inner.Dimension() }

// Model delegates to the wrapped provider.
func (p *RateLimitedProvider) Model() string { return p.inner.Model() }

var _ Provider = (*RateLimitedProvider)(nil)
