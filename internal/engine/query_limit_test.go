package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// scoredSet builds similarity-ordered candidates from (tokens, similarity)
// pairs.
func scoredSet(pairs ...[2]float64) []storage.ScoredMemory {
	out := make([]storage.ScoredMemory, 0, len(pairs))
	for i, p := range pairs {
		mem := testMemory(string(rune('a'+i)), "owner", "note", "content", 100)
		mem.TokenCount = int(p[0])
		out = append(out, storage.ScoredMemory{Memory: mem, Similarity: p[1]})
	}
	return out
}

func TestGreedySkipsOversizedAndContinues(t *testing.T) {
	// 300-token candidates against a 500-token budget: only the first fits,
	// later ones are skipped but scanning continues.
	candidates := scoredSet([2]float64{300, 0.9}, [2]float64{300, 0.8}, [2]float64{300, 0.7})
	limit := types.QueryLimit{MaxTokens: types.TokenPtr(500), Strategy: types.LimitGreedy}

	result := ApplyQueryLimit(candidates, limit)
	assert.Len(t, result.Memories, 1)
	assert.Equal(t, 300, result.Metadata.TotalTokens)
	assert.Equal(t, types.LimitReasonMaxTokens, result.Metadata.LimitReason)
	assert.Equal(t, 3, result.Metadata.TotalFound)
	assert.Equal(t, 1, result.Metadata.Returned)
}

func TestGreedyPacksSmallerLaterCandidates(t *testing.T) {
	candidates := scoredSet([2]float64{300, 0.9}, [2]float64{400, 0.8}, [2]float64{150, 0.7})
	limit := types.QueryLimit{MaxTokens: types.TokenPtr(500), Strategy: types.LimitGreedy}

	result := ApplyQueryLimit(candidates, limit)
	// The 400-token candidate is skipped; the 150-token one still fits.
	assert.Len(t, result.Memories, 2)
	assert.Equal(t, 450, result.Metadata.TotalTokens)
	assert.Equal(t, []float64{0.9, 0.7}, result.Similarities)
	assert.Equal(t, types.LimitReasonMaxTokens, result.Metadata.LimitReason)
}

func TestGreedyCountStopWinsOverSkips(t *testing.T) {
	candidates := scoredSet([2]float64{300, 0.9}, [2]float64{400, 0.8}, [2]float64{100, 0.7}, [2]float64{100, 0.6})
	limit := types.QueryLimit{
		MaxCount:  types.CountPtr(2),
		MaxTokens: types.TokenPtr(500),
		Strategy:  types.LimitGreedy,
	}

	result := ApplyQueryLimit(candidates, limit)
	assert.Len(t, result.Memories, 2)
	assert.Equal(t, types.LimitReasonMaxCount, result.Metadata.LimitReason)
}

func TestGreedySimilarityFloor(t *testing.T) {
	candidates := scoredSet([2]float64{10, 0.9}, [2]float64{10, 0.5}, [2]float64{10, 0.85})
	limit := types.QueryLimit{MinSimilarity: types.SimilarityPtr(0.8), Strategy: types.LimitGreedy}

	result := ApplyQueryLimit(candidates, limit)
	assert.Len(t, result.Memories, 2)
	assert.Equal(t, types.LimitReasonMinSimilarity, result.Metadata.LimitReason)
}

func TestGreedyNoConstraintsReturnsAll(t *testing.T) {
	candidates := scoredSet([2]float64{10, 0.9}, [2]float64{10, 0.8})
	result := ApplyQueryLimit(candidates, types.QueryLimit{Strategy: types.LimitGreedy})
	assert.Len(t, result.Memories, 2)
	assert.Equal(t, types.LimitReasonNone, result.Metadata.LimitReason)
	assert.InDelta(t, 0.85, result.Metadata.AvgSimilarity, 1e-9)
}

func TestAllStopsAtFirstViolation(t *testing.T) {
	// Same shape as the greedy packing case: ALL stops at the oversized
	// candidate instead of skipping past it.
	candidates := scoredSet([2]float64{300, 0.9}, [2]float64{400, 0.8}, [2]float64{150, 0.7})
	limit := types.QueryLimit{MaxTokens: types.TokenPtr(500), Strategy: types.LimitAll}

	result := ApplyQueryLimit(candidates, limit)
	assert.Len(t, result.Memories, 1)
	assert.Equal(t, types.LimitReasonMaxTokens, result.Metadata.LimitReason)
}

func TestAllStopsBelowSimilarityFloor(t *testing.T) {
	candidates := scoredSet([2]float64{10, 0.9}, [2]float64{10, 0.5}, [2]float64{10, 0.85})
	limit := types.QueryLimit{MinSimilarity: types.SimilarityPtr(0.8), Strategy: types.LimitAll}

	result := ApplyQueryLimit(candidates, limit)
	assert.Len(t, result.Memories, 1)
	assert.Equal(t, types.LimitReasonMinSimilarity, result.Metadata.LimitReason)
}

func TestAnyStopsAtFirstBoundReached(t *testing.T) {
	candidates := scoredSet([2]float64{100, 0.9}, [2]float64{100, 0.8}, [2]float64{100, 0.7})
	limit := types.QueryLimit{
		MaxCount:  types.CountPtr(2),
		MaxTokens: types.TokenPtr(10000),
		Strategy:  types.LimitAny,
	}

	result := ApplyQueryLimit(candidates, limit)
	assert.Len(t, result.Memories, 2)
	assert.Equal(t, types.LimitReasonMaxCount, result.Metadata.LimitReason)
}

func TestFirstMetIncludesTriggeringCandidate(t *testing.T) {
	candidates := scoredSet([2]float64{300, 0.9}, [2]float64{300, 0.8}, [2]float64{300, 0.7})
	limit := types.QueryLimit{MaxTokens: types.TokenPtr(500), Strategy: types.LimitFirstMet}

	result := ApplyQueryLimit(candidates, limit)
	// The second candidate pushes the total to 600, meeting the bound; it is
	// kept and scanning stops.
	assert.Len(t, result.Memories, 2)
	assert.Equal(t, 600, result.Metadata.TotalTokens)
	assert.Equal(t, types.LimitReasonMaxTokens, result.Metadata.LimitReason)
}

func TestFirstMetExcludesBelowThresholdCandidate(t *testing.T) {
	candidates := scoredSet([2]float64{10, 0.9}, [2]float64{10, 0.5})
	limit := types.QueryLimit{MinSimilarity: types.SimilarityPtr(0.8), Strategy: types.LimitFirstMet}

	result := ApplyQueryLimit(candidates, limit)
	assert.Len(t, result.Memories, 1)
	assert.Equal(t, types.LimitReasonMinSimilarity, result.Metadata.LimitReason)
}

func TestApplyQueryLimitEmptyCandidates(t *testing.T) {
	result := ApplyQueryLimit(nil, types.QueryLimit{Strategy: types.LimitGreedy})
	assert.Empty(t, result.Memories)
	assert.Equal(t, 0, result.Metadata.TotalFound)
	assert.Equal(t, types.LimitReasonNone, result.Metadata.LimitReason)
	assert.Zero(t, result.Metadata.AvgSimilarity)
}
