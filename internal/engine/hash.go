// Package engine implements the memory lifecycle core: content hashing,
// duplicate detection, decay scoring, query limiting, and the MemoryEngine
// orchestrator that ties them to storage and embedding collaborators.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashContent returns the SHA-256 hex digest (64 chars) of content. When
// normalize is true the content is canonicalized first so trivially
// reformatted repeats hash identically. No salting: duplicate detection
// requires the digest to be stable across calls.
func HashContent(content string, normalize bool) string {
	if normalize {
		content = NormalizeContent(content)
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NormalizeContent canonicalizes text for exact-duplicate comparison: trim,
// lowercase, and collapse all whitespace runs (including line breaks) to a
// single space.
func NormalizeContent(content string) string {
	return strings.Join(strings.Fields(strings.ToLower(content)), " ")
}
