// Package types defines the core data structures for the Engram memory system:
// memories, their per-type lifecycle configuration, and the query limit model
// used when truncating ranked retrieval results.
package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMemory indicates a memory failed structural validation.
var ErrInvalidMemory = errors.New("invalid memory")

// MetadataImmutableKey marks a memory as immutable when set to "true" in its
// metadata map. Update-style deduplication and content updates reject
// immutable memories.
const MetadataImmutableKey = "immutable"

// Memory represents a single memory unit: a piece of text owned by one caller,
// with a vector embedding for similarity retrieval and an integer decay score
// that tracks how strongly it is remembered.
type Memory struct {
	// ID is the opaque unique identifier (UUID).
	ID string `json:"id"`

	// OwnerID identifies the user or agent the memory belongs to.
	// All lifecycle and deduplication operations are scoped to one owner.
	OwnerID string `json:"owner_id"`

	// MemoryType is the registered category the memory belongs to
	// (e.g. "user_preference", "conversation"). Decay and dedup behavior
	// is resolved per type.
	MemoryType string `json:"memory_type"`

	// Content is the raw memory text.
	Content string `json:"content"`

	// ContentHash is the SHA-256 hex digest of Content, computed at save
	// time honoring the type's normalization setting. Used for exact
	// duplicate detection.
	ContentHash string `json:"content_hash,omitempty"`

	// Embedding is the vector embedding for semantic search.
	Embedding []float32 `json:"embedding,omitempty"`

	// Decay is the integer retention score. Higher means more strongly
	// remembered. Always within [MinDecay, MaxDecay] of the owning type's
	// DecayConfig.
	Decay int `json:"decay"`

	// Importance is a caller-assigned weight in [0.0, 1.0]. It influences
	// decay bonuses and takes the maximum on merge.
	Importance float64 `json:"importance"`

	// TokenCount is the approximate token size of Content, used for LLM
	// context budgeting during retrieval.
	TokenCount int `json:"token_count"`

	// Metadata holds arbitrary string key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// Validate checks the structural invariants that every stored memory must
// satisfy. Decay bounds are type-scoped and checked by the decay engine, not
// here.
func (m *Memory) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMemory)
	}
	if m.OwnerID == "" {
		return fmt.Errorf("%w: owner id is required", ErrInvalidMemory)
	}
	if m.Content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidMemory)
	}
	if m.MemoryType == "" {
		return fmt.Errorf("%w: memory type is required", ErrInvalidMemory)
	}
	if m.Importance < 0 || m.Importance > 1 {
		return fmt.Errorf("%w: importance %.3f outside [0,1]", ErrInvalidMemory, m.Importance)
	}
	return nil
}

// IsImmutable reports whether the memory is flagged immutable in its metadata.
func (m *Memory) IsImmutable() bool {
	return m.Metadata[MetadataImmutableKey] == "true"
}

// Touch records an access at the given instant.
func (m *Memory) Touch(now time.Time) {
	t := now
	m.LastAccessedAt = &t
}

// Age returns the time elapsed since the memory was created.
func (m *Memory) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}

// TimeSinceLastUse returns the elapsed time since the memory was last
// accessed, falling back to creation time when it has never been accessed.
func (m *Memory) TimeSinceLastUse(now time.Time) time.Duration {
	if m.LastAccessedAt != nil && !m.LastAccessedAt.IsZero() {
		return now.Sub(*m.LastAccessedAt)
	}
	return now.Sub(m.CreatedAt)
}
