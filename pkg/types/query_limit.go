package types

import "fmt"

// LimitStrategy selects how count, token, and similarity bounds combine when
// truncating ranked retrieval candidates.
type LimitStrategy string

const (
	// LimitGreedy is a best-effort bin-packing pass: candidates that would
	// overflow the token budget are skipped, but iteration continues to
	// later, possibly smaller, candidates. Never reorders. The default.
	LimitGreedy LimitStrategy = "greedy"

	// LimitAll is an AND filter over accumulated state: the first candidate
	// that would violate any bound stops the scan entirely.
	LimitAll LimitStrategy = "all"

	// LimitAny stops accepting as soon as any single bound is reached; the
	// triggering bound is recorded as the limit reason.
	LimitAny LimitStrategy = "any"

	// LimitFirstMet accepts candidates until the first bound is satisfied
	// and stops immediately, including the triggering candidate.
	LimitFirstMet LimitStrategy = "first_met"
)

// IsValid reports whether s names a known limit strategy.
func (s LimitStrategy) IsValid() bool {
	switch s {
	case LimitGreedy, LimitAll, LimitAny, LimitFirstMet:
		return true
	}
	return false
}

// Limit reason values recorded in QueryMetadata.LimitReason.
const (
	LimitReasonMaxCount      = "maxCount"
	LimitReasonMaxTokens     = "maxTokens"
	LimitReasonMinSimilarity = "minSimilarity"
	LimitReasonNone          = "none"
)

// QueryLimit bounds a retrieval operation along up to three dimensions.
// Nil fields are unconstrained. Immutable after construction; build with
// NewQueryLimit.
type QueryLimit struct {
	// MaxCount is the maximum number of memories to return (> 0 when set).
	MaxCount *int `yaml:"max_count" json:"max_count,omitempty"`

	// MaxTokens is the maximum total token budget of the returned set
	// (> 0 when set).
	MaxTokens *int `yaml:"max_tokens" json:"max_tokens,omitempty"`

	// MinSimilarity is the minimum similarity score in [0,1] for a
	// candidate to be eligible.
	MinSimilarity *float64 `yaml:"min_similarity" json:"min_similarity,omitempty"`

	// Strategy selects the combination policy. Empty defaults to greedy.
	Strategy LimitStrategy `yaml:"strategy" json:"strategy"`
}

// NewQueryLimit builds a validated QueryLimit. An empty strategy defaults to
// greedy; set bounds must be positive (and MinSimilarity within [0,1]).
func NewQueryLimit(limit QueryLimit) (QueryLimit, error) {
	if limit.Strategy == "" {
		limit.Strategy = LimitGreedy
	}
	if !limit.Strategy.IsValid() {
		return QueryLimit{}, fmt.Errorf("%w: unknown limit strategy %q", ErrInvalidConfig, limit.Strategy)
	}
	if limit.MaxCount != nil && *limit.MaxCount <= 0 {
		return QueryLimit{}, fmt.Errorf("%w: max count must be > 0, got %d", ErrInvalidConfig, *limit.MaxCount)
	}
	if limit.MaxTokens != nil && *limit.MaxTokens <= 0 {
		return QueryLimit{}, fmt.Errorf("%w: max tokens must be > 0, got %d", ErrInvalidConfig, *limit.MaxTokens)
	}
	if limit.MinSimilarity != nil && (*limit.MinSimilarity < 0 || *limit.MinSimilarity > 1) {
		return QueryLimit{}, fmt.Errorf("%w: min similarity %.3f outside [0,1]", ErrInvalidConfig, *limit.MinSimilarity)
	}
	return limit, nil
}

// CountPtr, TokenPtr, and SimilarityPtr are small helpers for building
// QueryLimit literals.
func CountPtr(n int) *int            { return &n }
func TokenPtr(n int) *int            { return &n }
func SimilarityPtr(f float64) *float64 { return &f }

// QueryMetadata describes how a query result set was produced.
type QueryMetadata struct {
	// TotalFound is the number of candidates the store returned before
	// limiting.
	TotalFound int `json:"total_found"`

	// Returned is the number of memories in the final set.
	Returned int `json:"returned"`

	// TotalTokens is the summed token count of the returned set.
	TotalTokens int `json:"total_tokens"`

	// AvgSimilarity is the mean similarity of the returned set, 0 when empty.
	AvgSimilarity float64 `json:"avg_similarity"`

	// LimitReason records which constraint caused truncation: "maxCount",
	// "maxTokens", "minSimilarity", or "none" when candidates were exhausted.
	LimitReason string `json:"limit_reason"`

	// ExecutionTimeMs is the wall-clock duration of limit evaluation.
	ExecutionTimeMs int64 `json:"execution_time_ms"`
}

// QueryResult is the ordered outcome of a retrieval operation. Constructed
// once per query and immutable thereafter.
type QueryResult struct {
	// Memories is the selected subset, in descending similarity order.
	Memories []*Memory `json:"memories"`

	// Similarities holds the similarity score of each returned memory,
	// index-aligned with Memories.
	Similarities []float64 `json:"similarities"`

	// Metadata describes how the set was produced.
	Metadata QueryMetadata `json:"metadata"`
}
