package engine

import (
	"errors"
	"fmt"

	"github.com/engramdev/engram/pkg/types"
)

var (
	// ErrDuplicate indicates a save was refused because a matching memory
	// already exists under the reject strategy.
	ErrDuplicate = errors.New("duplicate memory")

	// ErrImmutable indicates an update was attempted on a memory flagged
	// immutable in its metadata.
	ErrImmutable = errors.New("memory is immutable")

	// ErrMissingMemoryType indicates a lifecycle operation was invoked
	// without a memory type. Decay and dedup configuration is always
	// type-scoped, never global.
	ErrMissingMemoryType = errors.New("memory type is required")
)

// DuplicateError carries the existing memory when the reject strategy refuses
// a save, so callers can inspect it without a second lookup.
type DuplicateError struct {
	// Existing is the already-stored memory the new content matched.
	Existing *types.Memory

	// MatchLevel is "hash" for exact matches or "semantic" for
	// similarity matches.
	MatchLevel string

	// Similarity is the cosine similarity for semantic matches, 1.0 for
	// exact matches.
	Similarity float64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate memory: matches existing memory %s (%s match, similarity %.3f)",
		e.Existing.ID, e.MatchLevel, e.Similarity)
}

// Unwrap makes errors.Is(err, ErrDuplicate) work.
func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// TypeConfigSource supplies the per-type configuration the engine consumes.
// The registry package provides the production implementation.
type TypeConfigSource interface {
	DecayConfig(memType string) (types.DecayConfig, error)
	DeduplicationConfig(memType string) (types.DeduplicationConfig, error)
	DefaultQueryLimit(memType string) (types.QueryLimit, error)
}
