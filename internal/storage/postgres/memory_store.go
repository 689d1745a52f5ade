// Package postgres provides a PostgreSQL implementation of the storage.Store
// contract. Similarity search uses the pgvector extension's cosine distance
// operator; the rest is plain SQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/pkg/types"
)

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// New opens a connection pool to the PostgreSQL database at dsn and applies
// the schema. When the pgvector extension cannot be enabled the store still
// works, but SearchSimilar returns ErrVectorSearchUnavailable.
func New(dsn string, dimension int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	s := &Store{db: db}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available (similarity search disabled): %v", err)
	} else {
		s.pgvectorAvailable = true
	}

	if _, err := db.Exec(schema(dimension, s.pgvectorAvailable)); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	return s, nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const memoryColumns = `id, owner_id, memory_type, content, content_hash, embedding,
	decay, importance, token_count, metadata, created_at, updated_at, last_accessed_at`

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

	metadataJSON, err := marshalMetadata(mem.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (`+memoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		mem.ID, mem.OwnerID, mem.MemoryType, mem.Content, mem.ContentHash, vectorOrNil(mem.Embedding),
		mem.Decay, mem.Importance, mem.TokenCount, metadataJSON,
		mem.CreatedAt, mem.UpdatedAt, mem.LastAccessedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to save memory: %w", err)
	}
	return nil
}

// Update rewrites an existing memory row.
func (s *Store) Update(ctx context.Context, mem *types.Memory) error {
	if mem == nil || mem.ID == "" {
		return storage.ErrInvalidInput
	}

	metadataJSON, err := marshalMetadata(mem.Metadata)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET
			owner_id = $1, memory_type = $2, content = $3, content_hash = $4, embedding = $5,
			decay = $6, importance = $7, token_count = $8, metadata = $9,
			updated_at = $10, last_accessed_at = $11
		WHERE id = $12`,
		mem.OwnerID, mem.MemoryType, mem.Content, mem.ContentHash, vectorOrNil(mem.Embedding),
		mem.Decay, mem.Importance, mem.TokenCount, metadataJSON,
		mem.UpdatedAt, mem.LastAccessedAt, mem.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to update memory: %w", err)
	}
	return requireRowAffected(res)
}

// Delete removes a memory by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete memory: %w", err)
	}
	return requireRowAffected(res)
}

// DeleteByOwner removes all of an owner's memories and returns the count.
func (s *Store) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to delete memories for owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// FindByID retrieves a single memory.
func (s *Store) FindByID(ctx context.Context, id string) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = $1`, id)
	mem, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to find memory: %w", err)
	}
	return mem, nil
}

// FindByOwner returns all memories for an owner, newest first.
func (s *Store) FindByOwner(ctx context.Context, ownerID string) ([]*types.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

// FindByOwnerAndType returns an owner's memories of one type, newest first.
func (s *Store) FindByOwnerAndType(ctx context.Context, ownerID, memoryType string) ([]*types.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = $1 AND memory_type = $2 ORDER BY created_at DESC`, ownerID, memoryType)
}

// FindByOwnerWithDecayAbove returns an owner's memories with decay strictly
// above threshold.
func (s *Store) FindByOwnerWithDecayAbove(ctx context.Context, ownerID string, threshold int) ([]*types.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = $1 AND decay > $2 ORDER BY decay DESC`, ownerID, threshold)
}

// FindByOwnerWithDecayAtOrBelow returns expiry candidates for one owner+type.
func (s *Store) FindByOwnerWithDecayAtOrBelow(ctx context.Context, ownerID, memoryType string, threshold int) ([]*types.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT `+memoryColumns+` FROM memories
		WHERE owner_id = $1 AND memory_type = $2 AND decay <= $3 ORDER BY decay ASC`, ownerID, memoryType, threshold)
}

// CountByOwner returns the number of memories stored for an owner.
func (s *Store) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE owner_id = $1`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count memories: %w", err)
	}
	return n, nil
}

// SearchSimilar ranks the owner's memories of one type by cosine similarity
// using the pgvector <=> operator (cosine distance; similarity = 1 - distance).
func (s *Store) SearchSimilar(ctx context.Context, ownerID, memoryType string, vector []float32, limit int) ([]storage.ScoredMemory, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", storage.ErrInvalidInput)
	}
	if !s.pgvectorAvailable {
		return nil, storage.ErrVectorSearchUnavailable
	}
	if limit <= 0 {
		limit = 50
	}

	vec := pgvector.NewVector(vector)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memoryColumns+`, 1 - (embedding <=> $3::vector) AS similarity
		FROM memories
		WHERE owner_id = $1 AND memory_type = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $3::vector
		LIMIT $4`,
		ownerID, memoryType, vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: similarity search failed: %w", err)
	}
	defer rows.Close()

	var scored []storage.ScoredMemory
	for rows.Next() {
		mem, similarity, err := scanScoredMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan similarity row: %w", err)
		}
		scored = append(scored, storage.ScoredMemory{Memory: mem, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: similarity row iteration failed: %w", err)
	}
	return scored, nil
}

func (s *Store) queryMemories(ctx context.Context, query string, args ...interface{}) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query failed: %w", err)
	}
	defer rows.Close()

	var memories []*types.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan memory: %w", err)
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: row iteration failed: %w", err)
	}
	return memories, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// nullVector scans a nullable pgvector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src interface{}) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func scanMemoryInto(row scanner, extra ...interface{}) (*types.Memory, error) {
	var mem types.Memory
	var vec nullVector
	var metadataJSON sql.NullString
	var lastAccessed sql.NullTime

	dest := []interface{}{
		&mem.ID, &mem.OwnerID, &mem.MemoryType, &mem.Content, &mem.ContentHash, &vec,
		&mem.Decay, &mem.Importance, &mem.TokenCount, &metadataJSON,
		&mem.CreatedAt, &mem.UpdatedAt, &lastAccessed,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if vec.valid {
		mem.Embedding = vec.vec.Slice()
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

func scanMemory(row scanner) (*types.Memory, error) {
	return scanMemoryInto(row)
}

func scanScoredMemory(row scanner) (*types.Memory, float64, error) {
	var similarity float64
	mem, err := scanMemoryInto(row, &similarity)
	return mem, similarity, err
}

func marshalMetadata(metadata map[string]string) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("postgres: failed to marshal metadata: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

// vectorOrNil returns a driver value for the embedding column: NULL when the
// memory has no embedding yet.
func vectorOrNil(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
