package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/engramdev/engram/internal/embedding"
	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// fakeStore is an in-memory Store for engine tests. Similarity search ranks
// by cosine like the real backends.
type fakeStore struct {
	mu       sync.Mutex
	memories map[string]*types.Memory

	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{memories: make(map[string]*types.Memory)}
}

func (s *fakeStore) Save(_ context.Context, mem *types.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *mem
	s.memories[mem.ID] = &clone
	return nil
}

func (s *fakeStore) Update(_ context.Context, mem *types.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.memories[mem.ID]; !ok {
		return storage.ErrNotFound
	}
	clone := *mem
	s.memories[mem.ID] = &clone
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.memories, id)
	return nil
}

func (s *fakeStore) DeleteByOwner(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, mem := range s.memories {
		if mem.OwnerID == ownerID {
			delete(s.memories, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*types.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.memories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *mem
	return &clone, nil
}

func (s *fakeStore) FindByOwner(_ context.Context, ownerID string) ([]*types.Memory, error) {
	return s.filter(func(m *types.Memory) bool { return m.OwnerID == ownerID }), nil
}

func (s *fakeStore) FindByOwnerAndType(_ context.Context, ownerID, memoryType string) ([]*types.Memory, error) {
	return s.filter(func(m *types.Memory) bool {
		return m.OwnerID == ownerID && m.MemoryType == memoryType
	}), nil
}

func (s *fakeStore) FindByOwnerWithDecayAbove(_ context.Context, ownerID string, threshold int) ([]*types.Memory, error) {
	return s.filter(func(m *types.Memory) bool {
		return m.OwnerID == ownerID && m.Decay > threshold
	}), nil
}

func (s *fakeStore) FindByOwnerWithDecayAtOrBelow(_ context.Context, ownerID, memoryType string, threshold int) ([]*types.Memory, error) {
	return s.filter(func(m *types.Memory) bool {
		return m.OwnerID == ownerID && m.MemoryType == memoryType && m.Decay <= threshold
	}), nil
}

func (s *fakeStore) CountByOwner(_ context.Context, ownerID string) (int, error) {
	return len(s.filter(func(m *types.Memory) bool { return m.OwnerID == ownerID })), nil
}

func (s *fakeStore) SearchSimilar(_ context.Context, ownerID, memoryType string, vector []float32, limit int) ([]storage.ScoredMemory, error) {
	candidates := s.filter(func(m *types.Memory) bool {
		return m.OwnerID == ownerID && m.MemoryType == memoryType && len(m.Embedding) > 0
	})

	scored := make([]storage.ScoredMemory, 0, len(candidates))
	for _, mem := range candidates {
		scored = append(scored, storage.ScoredMemory{
			Memory:     mem,
			Similarity: embedding.Cosine(vector, mem.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) filter(keep func(*types.Memory) bool) []*types.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.Memory
	for _, mem := range s.memories {
		if keep(mem) {
			clone := *mem
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fakeEmbedder returns scripted vectors per text and counts calls, with a
// constant fallback so unscripted texts still embed.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) set(text string, vector []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[text] = vector
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Model() string  { return "fake" }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// staticConfig is a TypeConfigSource backed by fixed per-type configs.
type staticConfig struct {
	decay map[string]types.DecayConfig
	dedup map[string]types.DeduplicationConfig
	limit map[string]types.QueryLimit
}

func newStaticConfig() *staticConfig {
	return &staticConfig{
		decay: make(map[string]types.DecayConfig),
		dedup: make(map[string]types.DeduplicationConfig),
		limit: make(map[string]types.QueryLimit),
	}
}

func (c *staticConfig) DecayConfig(memType string) (types.DecayConfig, error) {
	cfg, ok := c.decay[memType]
	if !ok {
		return types.DecayConfig{}, types.ErrInvalidConfig
	}
	return cfg, nil
}

func (c *staticConfig) DeduplicationConfig(memType string) (types.DeduplicationConfig, error) {
	cfg, ok := c.dedup[memType]
	if !ok {
		return types.DeduplicationConfig{}, types.ErrInvalidConfig
	}
	return cfg, nil
}

func (c *staticConfig) DefaultQueryLimit(memType string) (types.QueryLimit, error) {
	cfg, ok := c.limit[memType]
	if !ok {
		return types.QueryLimit{Strategy: types.LimitGreedy}, nil
	}
	return cfg, nil
}

func testMemory(id, owner, memType, content string, decay int) *types.Memory {
	now := time.Now()
	return &types.Memory{
		ID:         id,
		OwnerID:    owner,
		MemoryType: memType,
		Content:    content,
		Decay:      decay,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
