package types

import "fmt"

// DedupStrategy is the policy applied when a duplicate memory is detected.
type DedupStrategy string

const (
	// DedupReject refuses the new memory and surfaces a duplicate conflict
	// carrying the existing one.
	DedupReject DedupStrategy = "reject"

	// DedupMerge keeps the existing memory, optionally reinforcing its
	// decay score and raising its importance to the max of the pair.
	DedupMerge DedupStrategy = "merge"

	// DedupUpdate replaces the existing memory's content with the new one,
	// resetting decay to the type's initial score.
	DedupUpdate DedupStrategy = "update"
)

// IsValid reports whether s names a known deduplication strategy.
func (s DedupStrategy) IsValid() bool {
	switch s {
	case DedupReject, DedupMerge, DedupUpdate:
		return true
	}
	return false
}

// DefaultSemanticThreshold is the minimum cosine similarity for two contents
// to be classified as semantic duplicates when a type does not configure one.
const DefaultSemanticThreshold = 0.85

// DeduplicationConfig describes duplicate handling for one memory type.
// Immutable after construction; build with NewDeduplicationConfig.
type DeduplicationConfig struct {
	// Enabled turns duplicate detection on for the type. When false, every
	// save persists a new memory.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Strategy selects how a detected duplicate is resolved.
	Strategy DedupStrategy `yaml:"strategy" json:"strategy"`

	// NormalizeContent applies the hasher's normalization pipeline before
	// exact matching (trim, lowercase, collapse whitespace).
	NormalizeContent bool `yaml:"normalize_content" json:"normalize_content"`

	// SemanticEnabled turns on the second-level semantic comparison. The
	// hash level always runs first; the embedding call is only made when
	// no exact match is found and this flag is set.
	SemanticEnabled bool `yaml:"semantic_enabled" json:"semantic_enabled"`

	// SemanticThreshold is the minimum cosine similarity in [0,1] for a
	// semantic duplicate.
	SemanticThreshold float64 `yaml:"semantic_threshold" json:"semantic_threshold"`

	// ReinforceOnMerge applies decay reinforcement to the surviving memory
	// when the merge strategy resolves a duplicate.
	ReinforceOnMerge bool `yaml:"reinforce_on_merge" json:"reinforce_on_merge"`
}

// NewDeduplicationConfig builds a validated DeduplicationConfig. A zero
// SemanticThreshold is replaced with the 0.85 default.
func NewDeduplicationConfig(cfg DeduplicationConfig) (DeduplicationConfig, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = DedupReject
	}
	if !cfg.Strategy.IsValid() {
		return DeduplicationConfig{}, fmt.Errorf("%w: unknown dedup strategy %q", ErrInvalidConfig, cfg.Strategy)
	}
	if cfg.SemanticThreshold == 0 {
		cfg.SemanticThreshold = DefaultSemanticThreshold
	}
	if cfg.SemanticThreshold < 0 || cfg.SemanticThreshold > 1 {
		return DeduplicationConfig{}, fmt.Errorf("%w: semantic threshold %.3f outside [0,1]",
			ErrInvalidConfig, cfg.SemanticThreshold)
	}
	return cfg, nil
}
