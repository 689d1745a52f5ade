package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// DecayEngine orchestrates strategy selection, score updates, reinforcement,
// and batch expiry cleanup. Persistence failures propagate to the caller; an
// unresolvable strategy is a fatal configuration error and is never retried.
type DecayEngine struct {
	store  storage.Store
	config TypeConfigSource
}

// NewDecayEngine creates a decay engine over the given collaborators.
func NewDecayEngine(store storage.Store, config TypeConfigSource) *DecayEngine {
	return &DecayEngine{store: store, config: config}
}

// ApplyDecay resolves the type's strategy, computes the new score for mem,
// persists it when it changed, and returns the updated memory.
func (e *DecayEngine) ApplyDecay(ctx context.Context, mem *types.Memory, memType string, dctx types.DecayContext) (*types.Memory, error) {
	cfg, err := e.config.DecayConfig(memType)
	if err != nil {
		return nil, err
	}
	dctx.Config = cfg

	strategy, err := strategyFor(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	newDecay := strategy.CalculateDecay(mem, dctx)
	if newDecay == mem.Decay {
		return mem, nil
	}

	mem.Decay = newDecay
	mem.UpdatedAt = dctx.Now
	if err := e.store.Update(ctx, mem); err != nil {
		return nil, fmt.Errorf("decay: failed to persist score for %s: %w", mem.ID, err)
	}
	return mem, nil
}

// Reinforce adds the type's reinforcement amount to mem's score, clamped to
// MaxDecay, independent of strategy. Used by the deduplication merge path and
// direct usage boosts.
func (e *DecayEngine) Reinforce(ctx context.Context, mem *types.Memory, memType string) (*types.Memory, error) {
	cfg, err := e.config.DecayConfig(memType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	mem.Decay = cfg.Clamp(mem.Decay + cfg.DecayReinforcement)
	mem.Touch(now)
	mem.UpdatedAt = now

	if err := e.store.Update(ctx, mem); err != nil {
		return nil, fmt.Errorf("decay: failed to persist reinforcement for %s: %w", mem.ID, err)
	}
	return mem, nil
}

// DeleteExpired removes the owner's memories of one type whose score has
// fallen to the type's MinDecay, when the type enables auto-delete. Returns
// the number deleted.
func (e *DecayEngine) DeleteExpired(ctx context.Context, ownerID, memType string) (int, error) {
	cfg, err := e.config.DecayConfig(memType)
	if err != nil {
		return 0, err
	}

	strategy, err := strategyFor(cfg.Strategy)
	if err != nil {
		return 0, err
	}

	candidates, err := e.store.FindByOwnerWithDecayAtOrBelow(ctx, ownerID, memType, cfg.MinDecay)
	if err != nil {
		return 0, fmt.Errorf("decay: failed to fetch expiry candidates: %w", err)
	}

	dctx := types.DecayContext{Now: time.Now(), Config: cfg}

	deleted := 0
	for _, mem := range candidates {
		if !strategy.ShouldAutoDelete(mem, dctx) {
			continue
		}
		if err := e.store.Delete(ctx, mem.ID); err != nil {
			return deleted, fmt.Errorf("decay: failed to delete expired memory %s: %w", mem.ID, err)
		}
		deleted++
	}

	if deleted > 0 {
		log.Printf("decay: deleted %d expired %s memories for owner %s", deleted, memType, ownerID)
	}
	return deleted, nil
}
