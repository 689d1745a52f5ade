// Package sqlite provides a SQLite implementation of the storage.Store
// contract using the pure-Go modernc.org/sqlite driver. Embeddings are stored
// as JSON and similarity is ranked in-process, which is adequate for the
// single-user data sizes this backend targets.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/engramdev/engram/internal/embedding"
	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// Schema is the base table definition. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id               TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL,
	memory_type      TEXT NOT NULL,
	content          TEXT NOT NULL,
	content_hash     TEXT NOT NULL DEFAULT '',
	embedding        TEXT,
	decay            INTEGER NOT NULL DEFAULT 0,
	importance       REAL NOT NULL DEFAULT 0,
	token_count      INTEGER NOT NULL DEFAULT 0,
	metadata         TEXT,
	created_at       TIMESTAMP NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	last_accessed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id);
CREATE INDEX IF NOT EXISTS idx_memories_owner_type ON memories(owner_id, memory_type);
CREATE INDEX IF NOT EXISTS idx_memories_owner_decay ON memories(owner_id, decay);
CREATE INDEX IF NOT EXISTS idx_memories_content_hash ON memories(owner_id, content_hash);
`

const memoryColumns = `id, owner_id, memory_type, content, content_hash, embedding,
	decay, importance, token_count, metadata, created_at, updated_at, last_accessed_at`

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and creates, if needed) the SQLite database at path and applies
// the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// The driver serializes access itself, but a single connection avoids
	// SQLITE_BUSY churn under concurrent sweeps.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying connection, used by tests and maintenance tools.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists a new memory row.
func (s *Store) Save(ctx context.Context, mem *types.Memory) error {
	if mem == nil {
		return storage.ErrInvalidInput
	}
	if err := mem.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now()
	}
	if mem.UpdatedAt.IsZero() {
		mem.UpdatedAt = mem.CreatedAt
	}

	embeddingJSON, metadataJSON, err := marshalColumns(mem)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.OwnerID, mem.MemoryType, mem.Content, mem.ContentHash, embeddingJSON,
		mem.Decay, mem.Importance, mem.TokenCount, metadataJSON,
		mem.CreatedAt, mem.UpdatedAt, mem.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save memory: %w", err)
	}
	return nil
}

// Update rewrites an existing memory row.
func (s *Store) Update(ctx context.Context, mem *types.Memory) error {
	if mem == nil || mem.ID == "" {
		return storage.ErrInvalidInput
	}

	embeddingJSON, metadataJSON, err := marshalColumns(mem)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET
			owner_id = ?, memory_type = ?, content = ?, content_hash = ?, embedding = ?,
			decay = ?, importance = ?, token_count = ?, metadata = ?,
			updated_at = ?, last_accessed_at = ?
		WHERE id = ?`,
		mem.OwnerID, mem.MemoryType, mem.Content, mem.ContentHash, embeddingJSON,
		mem.Decay, mem.Importance, mem.TokenCount, metadataJSON,
		mem.UpdatedAt, mem.LastAccessedAt, mem.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update memory: %w", err)
	}
	return requireRowAffected(res)
}

// Delete removes a memory by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete memory: %w", err)
	}
	return requireRowAffected(res)
}

// DeleteByOwner removes all of an owner's memories and returns the count.
func (s *Store) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to delete memories for owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// FindByID retrieves a single memory.
func (s *Store) FindByID(ctx context.Context, id string) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	mem, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to find memory: %w", err)
	}
	return mem, nil
}

// FindByOwner returns all memories for an owner, newest first.
func (s *Store) FindByOwner(ctx context.Context, ownerID string) ([]*types.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
}

// FindByOwnerAndType returns an owner's memories of one type, newest first.
func (s *Store) FindByOwnerAndType(ctx context.Context, ownerID, memoryType string) ([]*types.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = ? AND memory_type = ? ORDER BY created_at DESC`, ownerID, memoryType)
}

// FindByOwnerWithDecayAbove returns an owner's memories with decay strictly
// above threshold.
func (s *Store) FindByOwnerWithDecayAbove(ctx context.Context, ownerID string, threshold int) ([]*types.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = ? AND decay > ? ORDER BY decay DESC`, ownerID, threshold)
}

// FindByOwnerWithDecayAtOrBelow returns expiry candidates: an owner's
// memories of one type with decay at or below threshold.
func (s *Store) FindByOwnerWithDecayAtOrBelow(ctx context.Context, ownerID, memoryType string, threshold int) ([]*types.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = ? AND memory_type = ? AND decay <= ? ORDER BY decay ASC`, ownerID, memoryType, threshold)
}

// CountByOwner returns the number of memories stored for an owner.
func (s *Store) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE owner_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count memories: %w", err)
	}
	return n, nil
}

// SearchSimilar ranks the owner's memories of one type by cosine similarity
// to the query vector, computed in-process. Rows without an embedding are
// skipped.
func (s *Store) SearchSimilar(ctx context.Context, ownerID, memoryType string, vector []float32, limit int) ([]storage.ScoredMemory, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", storage.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 50
	}

	candidates, err := s.FindByOwnerAndType(ctx, ownerID, memoryType)
	if err != nil {
		return nil, err
	}

	scored := make([]storage.ScoredMemory, 0, len(candidates))
	for _, mem := range candidates {
		if len(mem.Embedding) == 0 {
			continue
		}
		scored = append(scored, storage.ScoredMemory{
			Memory:     mem,
			Similarity: embedding.Cosine(vector, mem.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *Store) queryMemories(ctx context.Context, query string, args ...interface{}) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query failed: %w", err)
	}
	defer rows.Close()

	var memories []*types.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan memory: %w", err)
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: row iteration failed: %w", err)
	}
	return memories, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (*types.Memory, error) {
	var mem types.Memory
	var embeddingJSON, metadataJSON sql.NullString
	var lastAccessed sql.NullTime

	err := row.Scan(
		&mem.ID, &mem.OwnerID, &mem.MemoryType, &mem.Content, &mem.ContentHash, &embeddingJSON,
		&mem.Decay, &mem.Importance, &mem.TokenCount, &metadataJSON,
		&mem.CreatedAt, &mem.UpdatedAt, &lastAccessed,
	)
	if err != nil {
		return nil, err
	}

	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &mem.Embedding); err != nil {
			return nil, fmt.Errorf("invalid embedding column: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &mem.Metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata column: %w", err)
		}
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		mem.LastAccessedAt = &t
	}
	return &mem, nil
}

func marshalColumns(mem *types.Memory) (embeddingJSON, metadataJSON sql.NullString, err error) {
	if len(mem.Embedding) > 0 {
		raw, merr := json.Marshal(mem.Embedding)
		if merr != nil {
			return embeddingJSON, metadataJSON, fmt.Errorf("sqlite: failed to marshal embedding: %w", merr)
		}
		embeddingJSON = sql.NullString{String: string(raw), Valid: true}
	}
	if len(mem.Metadata) > 0 {
		raw, merr := json.Marshal(mem.Metadata)
		if merr != nil {
			return embeddingJSON, metadataJSON, fmt.Errorf("sqlite: failed to marshal metadata: %w", merr)
		}
		metadataJSON = sql.NullString{String: string(raw), Valid: true}
	}
	return embeddingJSON, metadataJSON, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
