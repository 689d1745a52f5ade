package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/engramdev/engram/internal/embedding"
	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// SaveOutcome names what the save path did with a memory.
type SaveOutcome string

const (
	// SaveCreated means a new memory was persisted.
	SaveCreated SaveOutcome = "created"

	// SaveMerged means an existing duplicate absorbed the save.
	SaveMerged SaveOutcome = "merged"

	// SaveUpdated means an existing duplicate's content was replaced.
	SaveUpdated SaveOutcome = "updated"

	// SaveRejected means the save was refused because a duplicate exists.
	SaveRejected SaveOutcome = "rejected"
)

// SaveRequest describes a memory to store.
type SaveRequest struct {
	OwnerID    string
	MemoryType string
	Content    string
	Importance float64
	Metadata   map[string]string
}

// SaveResult reports the outcome of a save. Memory is the surviving record:
// the new memory when created, the existing one when merged, updated, or
// rejected.
type SaveResult struct {
	Memory     *types.Memory
	Outcome    SaveOutcome
	MatchLevel string
	Similarity float64
}

// RetrieveRequest describes a similarity query over one owner's memories of
// one type. A nil Limit falls back to the type's registered default.
type RetrieveRequest struct {
	OwnerID    string
	MemoryType string
	Query      string
	Limit      *types.QueryLimit
}

// candidateFetchLimit caps how many ranked candidates the store is asked for
// before query limiting runs. Limiting never reorders, so a generous fixed
// pool is enough for the skip-and-continue strategies to work with.
const candidateFetchLimit = 100

// MemoryEngine is the top-level orchestrator: it wires duplicate detection,
// decay scoring, embedding generation, and token counting around the store.
// Safe for concurrent use.
type MemoryEngine struct {
	store    storage.Store
	embedder embedding.Provider
	config   TypeConfigSource
	detector *HybridDetector
	decay    *DecayEngine
	tokens   *embedding.TokenCounter
}

// NewMemoryEngine creates the engine over the given collaborators.
func NewMemoryEngine(store storage.Store, embedder embedding.Provider, config TypeConfigSource) *MemoryEngine {
	return &MemoryEngine{
		store:    store,
		embedder: embedder,
		config:   config,
		detector: NewHybridDetector(store, embedder),
		decay:    NewDecayEngine(store, config),
		tokens:   embedding.NewTokenCounter(),
	}
}

// Decay exposes the decay engine for callers that reinforce or expire
// memories directly.
func (e *MemoryEngine) Decay() *DecayEngine { return e.decay }

// Save stores content as a memory of the given type, running duplicate
// detection first when the type enables it. On a duplicate the type's
// resolution strategy decides the outcome; the reject strategy returns both
// the rejection result and a *DuplicateError so callers can branch on
// errors.Is(err, ErrDuplicate) and still see the existing memory.
func (e *MemoryEngine) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.OwnerID == "" || req.Content == "" {
		return nil, fmt.Errorf("%w: owner id and content are required", storage.ErrInvalidInput)
	}
	if req.MemoryType == "" {
		return nil, ErrMissingMemoryType
	}
	if req.Importance < 0 || req.Importance > 1 {
		return nil, fmt.Errorf("%w: importance %.3f outside [0,1]", storage.ErrInvalidInput, req.Importance)
	}

	dedupCfg, err := e.config.DeduplicationConfig(req.MemoryType)
	if err != nil {
		return nil, err
	}
	decayCfg, err := e.config.DecayConfig(req.MemoryType)
	if err != nil {
		return nil, err
	}

	var detection *Detection
	if dedupCfg.Enabled {
		detection, err = e.detector.Detect(ctx, req.OwnerID, req.MemoryType, req.Content, dedupCfg)
		if err != nil {
			return nil, err
		}
		if detection.Found() {
			return e.resolveDuplicate(ctx, req, dedupCfg, decayCfg, detection)
		}
	}

	return e.create(ctx, req, dedupCfg, decayCfg, detection)
}

func (e *MemoryEngine) create(ctx context.Context, req SaveRequest, dedupCfg types.DeduplicationConfig, decayCfg types.DecayConfig, detection *Detection) (*SaveResult, error) {
	var vector []float32
	if detection != nil && len(detection.Embedding) > 0 {
		// The semantic pass already embedded this content.
		vector = detection.Embedding
	} else {
		var err error
		vector, err = e.embedder.Embed(ctx, req.Content)
		if err != nil {
			return nil, fmt.Errorf("engine: failed to embed content: %w", err)
		}
	}

	now := time.Now()
	mem := &types.Memory{
		ID:          uuid.New().String(),
		OwnerID:     req.OwnerID,
		MemoryType:  req.MemoryType,
		Content:     req.Content,
		ContentHash: HashContent(req.Content, dedupCfg.NormalizeContent),
		Embedding:   vector,
		Decay:       decayCfg.InitialDecay,
		Importance:  req.Importance,
		TokenCount:  e.tokens.Count(req.Content),
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := mem.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, mem); err != nil {
		return nil, fmt.Errorf("engine: failed to save memory: %w", err)
	}
	return &SaveResult{Memory: mem, Outcome: SaveCreated}, nil
}

func (e *MemoryEngine) resolveDuplicate(ctx context.Context, req SaveRequest, dedupCfg types.DeduplicationConfig, decayCfg types.DecayConfig, detection *Detection) (*SaveResult, error) {
	existing := detection.Existing
	result := &SaveResult{
		Memory:     existing,
		MatchLevel: detection.Level,
		Similarity: detection.Similarity,
	}

	switch dedupCfg.Strategy {
	case types.DedupReject:
		result.Outcome = SaveRejected
		return result, &DuplicateError{
			Existing:   existing,
			MatchLevel: detection.Level,
			Similarity: detection.Similarity,
		}

	case types.DedupMerge:
		if dedupCfg.ReinforceOnMerge {
			// Importance only ratchets up on a reinforcing merge; a plain
			// merge keeps the stored value untouched.
			if req.Importance > existing.Importance {
				existing.Importance = req.Importance
			}
			if _, err := e.decay.Reinforce(ctx, existing, req.MemoryType); err != nil {
				return nil, err
			}
		} else {
			existing.UpdatedAt = time.Now()
			if err := e.store.Update(ctx, existing); err != nil {
				return nil, fmt.Errorf("engine: failed to persist merge: %w", err)
			}
		}
		result.Outcome = SaveMerged
		return result, nil

	case types.DedupUpdate:
		if existing.IsImmutable() {
			return nil, fmt.Errorf("%w: memory %s", ErrImmutable, existing.ID)
		}

		vector := detection.Embedding
		if len(vector) == 0 {
			var err error
			vector, err = e.embedder.Embed(ctx, req.Content)
			if err != nil {
				return nil, fmt.Errorf("engine: failed to embed content: %w", err)
			}
		}

		existing.Content = req.Content
		existing.ContentHash = HashContent(req.Content, dedupCfg.NormalizeContent)
		existing.Embedding = vector
		existing.TokenCount = e.tokens.Count(req.Content)
		existing.Decay = decayCfg.InitialDecay
		existing.Importance = req.Importance
		existing.UpdatedAt = time.Now()
		if err := e.store.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("engine: failed to persist update: %w", err)
		}
		result.Outcome = SaveUpdated
		return result, nil

	default:
		return nil, fmt.Errorf("%w: unknown dedup strategy %q", types.ErrInvalidConfig, dedupCfg.Strategy)
	}
}

// Retrieve embeds the query text, ranks the owner's memories of the type by
// cosine similarity, and applies the query limit. Returned memories are
// touched so usage-based decay sees them as recently accessed; a failed
// touch is logged and does not fail the query.
func (e *MemoryEngine) Retrieve(ctx context.Context, req RetrieveRequest) (*types.QueryResult, error) {
	if req.OwnerID == "" || req.Query == "" {
		return nil, fmt.Errorf("%w: owner id and query are required", storage.ErrInvalidInput)
	}
	if req.MemoryType == "" {
		return nil, ErrMissingMemoryType
	}

	limit, err := e.resolveLimit(req)
	if err != nil {
		return nil, err
	}

	vector, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to embed query: %w", err)
	}

	start := time.Now()
	candidates, err := e.store.SearchSimilar(ctx, req.OwnerID, req.MemoryType, vector, candidateFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("engine: similarity search failed: %w", err)
	}

	result := ApplyQueryLimit(candidates, limit)
	result.Metadata.ExecutionTimeMs = time.Since(start).Milliseconds()

	now := time.Now()
	for _, mem := range result.Memories {
		mem.Touch(now)
		if err := e.store.Update(ctx, mem); err != nil {
			log.Printf("engine: failed to record access for memory %s: %v", mem.ID, err)
		}
	}
	return &result, nil
}

func (e *MemoryEngine) resolveLimit(req RetrieveRequest) (types.QueryLimit, error) {
	if req.Limit != nil {
		return types.NewQueryLimit(*req.Limit)
	}
	return e.config.DefaultQueryLimit(req.MemoryType)
}

// Get fetches a memory by ID without recording an access.
func (e *MemoryEngine) Get(ctx context.Context, id string) (*types.Memory, error) {
	return e.store.FindByID(ctx, id)
}

// UpdateContent replaces a memory's content, recomputing its hash, embedding,
// and token count. Decay and importance are preserved. Immutable memories are
// refused.
func (e *MemoryEngine) UpdateContent(ctx context.Context, id, content string) (*types.Memory, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", storage.ErrInvalidInput)
	}

	mem, err := e.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mem.IsImmutable() {
		return nil, fmt.Errorf("%w: memory %s", ErrImmutable, mem.ID)
	}

	dedupCfg, err := e.config.DeduplicationConfig(mem.MemoryType)
	if err != nil {
		return nil, err
	}

	vector, err := e.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to embed content: %w", err)
	}

	mem.Content = content
	mem.ContentHash = HashContent(content, dedupCfg.NormalizeContent)
	mem.Embedding = vector
	mem.TokenCount = e.tokens.Count(content)
	mem.UpdatedAt = time.Now()
	if err := e.store.Update(ctx, mem); err != nil {
		return nil, fmt.Errorf("engine: failed to persist content update: %w", err)
	}
	return mem, nil
}

// Delete removes a memory by ID.
func (e *MemoryEngine) Delete(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// Forget removes all memories for an owner and returns the count.
func (e *MemoryEngine) Forget(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("%w: owner id is required", storage.ErrInvalidInput)
	}
	n, err := e.store.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("engine: failed to forget owner %s: %w", ownerID, err)
	}
	if n > 0 {
		log.Printf("engine: forgot %d memories for owner %s", n, ownerID)
	}
	return n, nil
}
