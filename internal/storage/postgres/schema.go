package postgres

import "fmt"

// schema returns the idempotent table definition. The embedding column is a
// pgvector vector(n) when the extension is available; otherwise it degrades
// to TEXT (same "[1,2,3]" wire format) and similarity search is disabled.
func schema(dimension int, pgvectorAvailable bool) string {
	if dimension <= 0 {
		dimension = 1536
	}

	embeddingColumn := "embedding TEXT,"
	embeddingIndex := ""
	if pgvectorAvailable {
		embeddingColumn = fmt.Sprintf("embedding vector(%d),", dimension)
		// ivfflat accelerates cosine-distance ordering once the table has data.
		embeddingIndex = `
CREATE INDEX IF NOT EXISTS idx_memories_embedding
	ON memories USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);`
	}

	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS memories (
	id               TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL,
	memory_type      TEXT NOT NULL,
	content          TEXT NOT NULL,
	content_hash     TEXT NOT NULL DEFAULT '',
	%s
	decay            INTEGER NOT NULL DEFAULT 0,
	importance       DOUBLE PRECISION NOT NULL DEFAULT 0,
	token_count      INTEGER NOT NULL DEFAULT 0,
	metadata         JSONB,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	last_accessed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_memories_owner ON memories(owner_id);
CREATE INDEX IF NOT EXISTS idx_memories_owner_type ON memories(owner_id, memory_type);
CREATE INDEX IF NOT EXISTS idx_memories_owner_decay ON memories(owner_id, decay);
CREATE INDEX IF NOT EXISTS idx_memories_content_hash ON memories(owner_id, content_hash);
%s
`, embeddingColumn, embeddingIndex)
}
