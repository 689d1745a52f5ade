package engine

import (
	"context"
	"fmt"

	"github.com/engramdev/engram/internal/embedding"
	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// Match levels reported by detectors.
const (
	MatchLevelHash     = "hash"
	MatchLevelSemantic = "semantic"
)

// Detection is a detector's verdict for one candidate save.
type Detection struct {
	// Existing is the matching stored memory, nil when no duplicate.
	Existing *types.Memory

	// Level records which cascade level matched: hash or semantic.
	Level string

	// Similarity is the cosine similarity for semantic matches, 1.0 for
	// exact matches.
	Similarity float64

	// Embedding carries the new content's vector when the semantic level
	// had to compute one, so the save path can reuse it instead of calling
	// the provider again.
	Embedding []float32
}

// Found reports whether a duplicate was detected.
func (d *Detection) Found() bool { return d != nil && d.Existing != nil }

// HashDetector finds exact duplicates by content hash. It scans only the
// owner's memories of the given type, never cross-owner or cross-type.
// O(n) per check; the point is to short-circuit before any embedding call.
type HashDetector struct {
	store storage.Store
}

// NewHashDetector creates a hash-level detector.
func NewHashDetector(store storage.Store) *HashDetector {
	return &HashDetector{store: store}
}

// Detect returns the first stored memory whose content hashes identically to
// content, honoring the type's normalization flag.
func (d *HashDetector) Detect(ctx context.Context, ownerID, memType, content string, cfg types.DeduplicationConfig) (*Detection, error) {
	digest := HashContent(content, cfg.NormalizeContent)

	existing, err := d.store.FindByOwnerAndType(ctx, ownerID, memType)
	if err != nil {
		return nil, fmt.Errorf("dedup: failed to fetch candidates: %w", err)
	}

	for _, mem := range existing {
		// Candidates are re-hashed the same way rather than trusting the
		// stored hash, so a type's normalization flag can change without
		// invalidating old rows.
		if HashContent(mem.Content, cfg.NormalizeContent) == digest {
			return &Detection{Existing: mem, Level: MatchLevelHash, Similarity: 1.0}, nil
		}
	}
	return &Detection{}, nil
}

// SemanticDetector finds paraphrase duplicates by embedding similarity. The
// threshold decision lives here; embedding generation is delegated to the
// provider collaborator.
type SemanticDetector struct {
	store    storage.Store
	embedder embedding.Provider
}

// NewSemanticDetector creates a semantic-level detector.
func NewSemanticDetector(store storage.Store, embedder embedding.Provider) *SemanticDetector {
	return &SemanticDetector{store: store, embedder: embedder}
}

// Detect embeds content and returns the first stored memory of the same
// owner and type whose similarity meets the type's threshold. Stored rows
// without an embedding are skipped rather than re-embedded.
func (d *SemanticDetector) Detect(ctx context.Context, ownerID, memType, content string, cfg types.DeduplicationConfig) (*Detection, error) {
	vector, err := d.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("dedup: failed to embed content: %w", err)
	}

	existing, err := d.store.FindByOwnerAndType(ctx, ownerID, memType)
	if err != nil {
		return nil, fmt.Errorf("dedup: failed to fetch candidates: %w", err)
	}

	for _, mem := range existing {
		if len(mem.Embedding) == 0 {
			continue
		}
		if sim := embedding.Cosine(vector, mem.Embedding); sim >= cfg.SemanticThreshold {
			return &Detection{Existing: mem, Level: MatchLevelSemantic, Similarity: sim, Embedding: vector}, nil
		}
	}
	return &Detection{Embedding: vector}, nil
}

// HybridDetector is the two-level cascade the engine save path uses. Level 1
// runs the hash detector; an exact repeat (the common case) resolves without
// any embedding cost. Level 2 runs the semantic detector only when the type
// enables it.
type HybridDetector struct {
	hash     *HashDetector
	semantic *SemanticDetector
}

// NewHybridDetector creates the cascade detector.
func NewHybridDetector(store storage.Store, embedder embedding.Provider) *HybridDetector {
	return &HybridDetector{
		hash:     NewHashDetector(store),
		semantic: NewSemanticDetector(store, embedder),
	}
}

// Detect runs the cascade and returns the first match, or an empty detection
// when the content is novel.
func (d *HybridDetector) Detect(ctx context.Context, ownerID, memType, content string, cfg types.DeduplicationConfig) (*Detection, error) {
	detection, err := d.hash.Detect(ctx, ownerID, memType, content, cfg)
	if err != nil {
		return nil, err
	}
	if detection.Found() {
		return detection, nil
	}

	if !cfg.SemanticEnabled {
		return &Detection{}, nil
	}
	return d.semantic.Detect(ctx, ownerID, memType, content, cfg)
}
