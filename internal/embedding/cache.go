package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingProvider decorates a Provider with an LRU cache keyed by model and
// content hash. Identical save and dedup flows frequently re-embed the same
// text; the cache collapses those into one provider call.
type CachingProvider struct {
	inner Provider
	cache *lru.Cache[string, []float32]
}

// NewCachingProvider wraps inner with an LRU cache of the given size.
// Size must be positive.
func NewCachingProvider(inner Provider, size int) (*CachingProvider, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding: failed to create cache: %w", err)
	}
	return &CachingProvider{inner: inner, cache: cache}, nil
}

// Embed returns a cached vector when available, otherwise delegates and
// caches the result. Cached slices are shared; callers must not mutate them.
func (p *CachingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := p.cacheKey(text)
	if vec, ok := p.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, vec)
	return vec, nil
}

// Dimension delegates to the wrapped provider.
func (p *CachingProvider) Dimension() int { return p.inner.Dimension() }

// Model delegates to the wrapped provider.
func (p *CachingProvider) Model() string { return p.inner.Model() }

// Len returns the number of cached vectors.
func (p *CachingProvider) Len() int { return p.cache.Len() }

func (p *CachingProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return p.inner.Model() + ":" + hex.EncodeToString(sum[:])
}

var _ Provider = (*CachingProvider)(nil)
