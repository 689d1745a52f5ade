package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// SweepResult summarizes one lifecycle sweep over an owner's memories of a
// single type.
type SweepResult struct {
	OwnerID    string
	MemoryType string

	// Processed is the number of memories the sweep evaluated.
	Processed int

	// Reinforced counts memories whose score increased.
	Reinforced int

	// Decayed counts memories whose score decreased.
	Decayed int

	// Unchanged counts memories whose score stayed put.
	Unchanged int

	// Deleted counts memories removed by expiry cleanup.
	Deleted int

	Duration time.Duration
}

// LifecycleManager runs decay sweeps and expiry cleanup for one owner and
// memory type at a time. Sweeps over the same owner and type are serialized
// with an in-process keyed lock so two concurrent sweeps cannot double-apply
// decay; different owner/type pairs proceed in parallel.
//
// Sweeps are configured fluently and executed with Run:
//
//	result, err := manager.ForOwner("agent-7").
//		WithType("episodic").
//		WithUsedMemories(usedIDs).
//		WithActiveSession(true).
//		Run(ctx)
type LifecycleManager struct {
	store  storage.Store
	decay  *DecayEngine
	config TypeConfigSource

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLifecycleManager creates a lifecycle manager over the given
// collaborators.
func NewLifecycleManager(store storage.Store, decay *DecayEngine, config TypeConfigSource) *LifecycleManager {
	return &LifecycleManager{
		store:  store,
		decay:  decay,
		config: config,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor returns the sweep mutex for one owner/type pair, creating it on
// first use. Lock entries are never removed; the set of owner/type pairs is
// small and bounded by configuration in practice.
func (m *LifecycleManager) lockFor(ownerID, memType string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerID + "\x00" + memType
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// ForOwner starts building a sweep for the given owner.
func (m *LifecycleManager) ForOwner(ownerID string) *Sweep {
	return &Sweep{manager: m, ownerID: ownerID, used: make(map[string]bool)}
}

// Sweep is a configured lifecycle pass, built fluently from
// LifecycleManager.ForOwner. Zero-value session flags mean an inactive
// session with no used memories, which freezes usage-based types.
type Sweep struct {
	manager *LifecycleManager

	ownerID       string
	memType       string
	used          map[string]bool
	activeSession bool
}

// WithType sets the memory type to sweep. Required.
func (s *Sweep) WithType(memType string) *Sweep {
	s.memType = memType
	return s
}

// WithUsedMemories marks the memory IDs that were recalled or referenced in
// the current session. Marking any implies an active session.
func (s *Sweep) WithUsedMemories(ids []string) *Sweep {
	for _, id := range ids {
		s.used[id] = true
	}
	if len(ids) > 0 {
		s.activeSession = true
	}
	return s
}

// WithActiveSession sets whether a session is currently running. Unused
// memories only erode while a session is active.
func (s *Sweep) WithActiveSession(active bool) *Sweep {
	s.activeSession = active
	return s
}

// Run executes the full sweep: decay every memory of the owner's type, then
// delete the ones that expired. Returns counts of what happened.
func (s *Sweep) Run(ctx context.Context) (*SweepResult, error) {
	if s.memType == "" {
		return nil, ErrMissingMemoryType
	}
	if _, err := s.manager.config.DecayConfig(s.memType); err != nil {
		return nil, err
	}

	lock := s.manager.lockFor(s.ownerID, s.memType)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result := &SweepResult{OwnerID: s.ownerID, MemoryType: s.memType}

	if err := s.applyDecay(ctx, result); err != nil {
		return nil, err
	}

	deleted, err := s.manager.decay.DeleteExpired(ctx, s.ownerID, s.memType)
	if err != nil {
		return nil, err
	}
	result.Deleted = deleted
	result.Duration = time.Since(start)

	log.Printf("lifecycle: swept %d %s memories for owner %s (%d reinforced, %d decayed, %d deleted) in %s",
		result.Processed, s.memType, s.ownerID, result.Reinforced, result.Decayed, result.Deleted, result.Duration)
	return result, nil
}

// ApplyDecay runs only the decay phase of the sweep, without expiry cleanup.
func (s *Sweep) ApplyDecay(ctx context.Context) (*SweepResult, error) {
	if s.memType == "" {
		return nil, ErrMissingMemoryType
	}

	lock := s.manager.lockFor(s.ownerID, s.memType)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result := &SweepResult{OwnerID: s.ownerID, MemoryType: s.memType}
	if err := s.applyDecay(ctx, result); err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// CleanupExpired runs only the expiry phase of the sweep.
func (s *Sweep) CleanupExpired(ctx context.Context) (*SweepResult, error) {
	if s.memType == "" {
		return nil, ErrMissingMemoryType
	}

	lock := s.manager.lockFor(s.ownerID, s.memType)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result := &SweepResult{OwnerID: s.ownerID, MemoryType: s.memType}

	deleted, err := s.manager.decay.DeleteExpired(ctx, s.ownerID, s.memType)
	if err != nil {
		return nil, err
	}
	result.Deleted = deleted
	result.Duration = time.Since(start)
	return result, nil
}

func (s *Sweep) applyDecay(ctx context.Context, result *SweepResult) error {
	memories, err := s.manager.store.FindByOwnerAndType(ctx, s.ownerID, s.memType)
	if err != nil {
		return fmt.Errorf("lifecycle: failed to fetch memories for sweep: %w", err)
	}

	cfg, err := s.manager.config.DecayConfig(s.memType)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, mem := range memories {
		dctx := types.NewDecayContext(mem, cfg, now, s.used[mem.ID], s.activeSession)

		before := mem.Decay
		updated, err := s.manager.decay.ApplyDecay(ctx, mem, s.memType, dctx)
		if err != nil {
			return err
		}

		result.Processed++
		switch {
		case updated.Decay > before:
			result.Reinforced++
		case updated.Decay < before:
			result.Decayed++
		default:
			result.Unchanged++
		}
	}
	return nil
}
