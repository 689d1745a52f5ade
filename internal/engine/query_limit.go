package engine

import (
	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// ApplyQueryLimit filters similarity-ordered candidates down to the result
// set allowed by limit, and reports how the result was shaped. Candidates
// must already be sorted by similarity descending; constraint evaluation
// order within each candidate is fixed: minSimilarity, then maxCount, then
// maxTokens.
func ApplyQueryLimit(candidates []storage.ScoredMemory, limit types.QueryLimit) types.QueryResult {
	result := types.QueryResult{
		Memories:     []*types.Memory{},
		Similarities: []float64{},
		Metadata: types.QueryMetadata{
			TotalFound:  len(candidates),
			LimitReason: types.LimitReasonNone,
		},
	}

	switch limit.Strategy {
	case types.LimitAll:
		applyAll(candidates, limit, &result)
	case types.LimitAny:
		applyAny(candidates, limit, &result)
	case types.LimitFirstMet:
		applyFirstMet(candidates, limit, &result)
	default:
		applyGreedy(candidates, limit, &result)
	}

	finalizeMetadata(&result)
	return result
}

func accept(result *types.QueryResult, c storage.ScoredMemory) {
	result.Memories = append(result.Memories, c.Memory)
	result.Similarities = append(result.Similarities, c.Similarity)
	result.Metadata.TotalTokens += c.Memory.TokenCount
}

func finalizeMetadata(result *types.QueryResult) {
	result.Metadata.Returned = len(result.Memories)
	if len(result.Similarities) == 0 {
		return
	}
	sum := 0.0
	for _, s := range result.Similarities {
		sum += s
	}
	result.Metadata.AvgSimilarity = sum / float64(len(result.Similarities))
}

// applyGreedy packs as many candidates as fit: a candidate that would blow
// the token budget or falls below the similarity floor is skipped, and
// iteration continues with the next one. Only the count bound terminates the
// scan. The reported reason prefers the count stop over a token skip over a
// similarity skip.
func applyGreedy(candidates []storage.ScoredMemory, limit types.QueryLimit, result *types.QueryResult) {
	skippedTokens := false
	skippedSimilarity := false

	for _, c := range candidates {
		if limit.MaxCount != nil && len(result.Memories) >= *limit.MaxCount {
			result.Metadata.LimitReason = types.LimitReasonMaxCount
			return
		}
		if limit.MinSimilarity != nil && c.Similarity < *limit.MinSimilarity {
			skippedSimilarity = true
			continue
		}
		if limit.MaxTokens != nil && result.Metadata.TotalTokens+c.Memory.TokenCount > *limit.MaxTokens {
			skippedTokens = true
			continue
		}
		accept(result, c)
	}

	switch {
	case skippedTokens:
		result.Metadata.LimitReason = types.LimitReasonMaxTokens
	case skippedSimilarity:
		result.Metadata.LimitReason = types.LimitReasonMinSimilarity
	}
}

// applyAll admits candidates only while every constraint holds and stops at
// the first violation, preserving the similarity-ordered prefix property.
func applyAll(candidates []storage.ScoredMemory, limit types.QueryLimit, result *types.QueryResult) {
	for _, c := range candidates {
		if limit.MaxCount != nil && len(result.Memories) >= *limit.MaxCount {
			result.Metadata.LimitReason = types.LimitReasonMaxCount
			return
		}
		if limit.MinSimilarity != nil && c.Similarity < *limit.MinSimilarity {
			result.Metadata.LimitReason = types.LimitReasonMinSimilarity
			return
		}
		if limit.MaxTokens != nil && result.Metadata.TotalTokens+c.Memory.TokenCount > *limit.MaxTokens {
			result.Metadata.LimitReason = types.LimitReasonMaxTokens
			return
		}
		accept(result, c)
	}
}

// applyAny stops as soon as any single constraint is reached. Count and
// similarity bounds are checked before admission; the token bound stops
// before the candidate that would exceed it.
func applyAny(candidates []storage.ScoredMemory, limit types.QueryLimit, result *types.QueryResult) {
	for _, c := range candidates {
		if limit.MaxCount != nil && len(result.Memories) >= *limit.MaxCount {
			result.Metadata.LimitReason = types.LimitReasonMaxCount
			return
		}
		if limit.MinSimilarity != nil && c.Similarity < *limit.MinSimilarity {
			result.Metadata.LimitReason = types.LimitReasonMinSimilarity
			return
		}
		if limit.MaxTokens != nil && result.Metadata.TotalTokens+c.Memory.TokenCount > *limit.MaxTokens {
			result.Metadata.LimitReason = types.LimitReasonMaxTokens
			return
		}
		accept(result, c)
	}
}

// applyFirstMet keeps accepting until the first constraint fires, and the
// candidate that triggers a count or token bound is included in the result.
// A candidate below the similarity floor is excluded, since admitting it
// would return an irrelevant memory.
func applyFirstMet(candidates []storage.ScoredMemory, limit types.QueryLimit, result *types.QueryResult) {
	for _, c := range candidates {
		if limit.MinSimilarity != nil && c.Similarity < *limit.MinSimilarity {
			result.Metadata.LimitReason = types.LimitReasonMinSimilarity
			return
		}

		accept(result, c)

		if limit.MaxCount != nil && len(result.Memories) >= *limit.MaxCount {
			result.Metadata.LimitReason = types.LimitReasonMaxCount
			return
		}
		if limit.MaxTokens != nil && result.Metadata.TotalTokens >= *limit.MaxTokens {
			result.Metadata.LimitReason = types.LimitReasonMaxTokens
			return
		}
	}
}
