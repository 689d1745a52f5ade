// Package storage defines the persistence contract the memory lifecycle
// engine is built against. Backends (SQLite, PostgreSQL) implement the Store
// interface; the core treats all I/O as blocking calls on an injected
// collaborator.
package storage

import (
	"errors"

	"github.com/engramdev/engram/pkg/types"
)

var (
	// ErrNotFound indicates the requested memory does not exist.
	ErrNotFound = errors.New("memory not found")

	// ErrInvalidInput indicates the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVectorSearchUnavailable indicates the backend cannot serve
	// similarity queries (e.g. pgvector extension missing).
	ErrVectorSearchUnavailable = errors.New("vector search unavailable")
)

// ScoredMemory pairs a memory with its similarity score against a query
// vector. Stores return candidates ranked by descending score.
type ScoredMemory struct {
	Memory     *types.Memory
	Similarity float64
}
