package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider records how many times Embed is called.
type countingProvider struct {
	calls int
}

func (p *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.calls++
	vec := make([]float32, 4)
	for i, r := range text {
		vec[i%4] += float32(r)
	}
	return vec, nil
}

func (p *countingProvider) Dimension() int { return 4 }
func (p *countingProvider) Model() string  { return "counting" }

func TestCachingProviderCollapsesRepeatCalls(t *testing.T) {
	inner := &countingProvider{}
	cached, err := NewCachingProvider(inner, 8)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := cached.Embed(ctx, "user loves pizza")
	require.NoError(t, err)

	second, err := cached.Embed(ctx, "user loves pizza")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call should be served from cache")
	assert.Equal(t, 1, cached.Len())
}

func TestCachingProviderDistinctTexts(t *testing.T) {
	inner := &countingProvider{}
	cached, err := NewCachingProvider(inner, 8)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cached.Embed(ctx, "first")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "second")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachingProviderRejectsZeroSize(t *testing.T) {
	_, err := NewCachingProvider(&countingProvider{}, 0)
	assert.Error(t, err)
}

func TestTokenCounterHeuristicFallback(t *testing.T) {
	// estimateTokens is the offline fallback: ~4 chars per token, round up.
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world!", 3},
	}
	for _, tc := range cases {
		if got := estimateTokens(tc.text); got != tc.want {
			t.Errorf("estimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}

	c := NewTokenCounter()
	if got := c.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
	if got := c.Count("the user prefers dark mode"); got <= 0 {
		t.Errorf("Count should be positive for non-empty text, got %d", got)
	}
}
