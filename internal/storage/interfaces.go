package storage

import (
	"context"

	"github.com/engramdev/engram/pkg/types"
)

// Store provides persistence for memories. Implementations must scope every
// query to the given owner; the engine never performs cross-owner lookups.
type Store interface {
	// Save persists a new memory. Returns ErrInvalidInput when required
	// fields are missing.
	Save(ctx context.Context, mem *types.Memory) error

	// Update rewrites an existing memory. Returns ErrNotFound when the
	// memory does not exist.
	Update(ctx context.Context, mem *types.Memory) error

	// Delete removes a memory by ID. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error

	// DeleteByOwner removes all memories for an owner and returns the count.
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)

	// FindByID retrieves a memory. Returns ErrNotFound when absent.
	FindByID(ctx context.Context, id string) (*types.Memory, error)

	// FindByOwner returns all memories for an owner.
	FindByOwner(ctx context.Context, ownerID string) ([]*types.Memory, error)

	// FindByOwnerAndType returns an owner's memories of one type. This is
	// the scope duplicate detection operates over.
	FindByOwnerAndType(ctx context.Context, ownerID, memoryType string) ([]*types.Memory, error)

	// FindByOwnerWithDecayAbove returns an owner's memories whose decay
	// score is strictly above the threshold.
	FindByOwnerWithDecayAbove(ctx context.Context, ownerID string, threshold int) ([]*types.Memory, error)

	// FindByOwnerWithDecayAtOrBelow returns an owner's memories of one type
	// whose decay score is at or below the threshold. Used by expiry cleanup.
	FindByOwnerWithDecayAtOrBelow(ctx context.Context, ownerID, memoryType string, threshold int) ([]*types.Memory, error)

	// CountByOwner returns the number of memories stored for an owner.
	CountByOwner(ctx context.Context, ownerID string) (int, error)

	// SearchSimilar returns up to limit memories of the owner and type
	// ranked by descending cosine similarity to the query vector.
	SearchSimilar(ctx context.Context, ownerID, memoryType string, vector []float32, limit int) ([]ScoredMemory, error)

	// Close releases any resources held by the store.
	Close() error
}
