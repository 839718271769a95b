package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/atomicwork-labs/kbase/internal/vector"
)

// Chunks is the PostgreSQL vector.ChunkRepository.
type Chunks struct {
	pool *pgxpool.Pool
}

// NewChunks creates a chunk repository over the given pool.
func NewChunks(pool *pgxpool.Pool) *Chunks {
	return &Chunks{pool: pool}
}

const insertChunkSQL = `
INSERT INTO knowledge_chunks (id, doc_id, ordinal, content, meta, embedding)
VALUES ($1, $2, $3, $4, $5, $6)`

// Add persists a chunk.
func (r *Chunks) Add(ctx context.Context, chunk vector.Chunk) error {
	meta, err := json.Marshal(chunk.Meta)
	if err != nil {
		return fmt.Errorf("encoding chunk meta: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertChunkSQL,
		chunk.ID,
		chunk.DocID,
		chunk.Ordinal,
		chunk.Content,
		meta,
		pgvector.NewVector(chunk.Embedding),
	)
	if err != nil {
		return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// All returns every stored chunk in insertion order.
func (r *Chunks) All(ctx context.Context) ([]vector.Chunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, doc_id, ordinal, content, meta, embedding
		 FROM knowledge_chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	var chunks []vector.Chunk
	for rows.Next() {
		var (
			chunk     vector.Chunk
			meta      []byte
			embedding pgvector.Vector
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocID, &chunk.Ordinal, &chunk.Content, &meta, &embedding); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &chunk.Meta); err != nil {
				return nil, fmt.Errorf("decoding chunk meta: %w", err)
			}
		}
		chunk.Embedding = embedding.Slice()
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	return chunks, nil
}

// DeleteByDoc removes all chunks belonging to a document.
func (r *Chunks) DeleteByDoc(ctx context.Context, docID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("deleting chunks for document %s: %w", docID, err)
	}
	return nil
}

// CountByDoc returns the number of chunks stored for a document.
func (r *Chunks) CountByDoc(ctx context.Context, docID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_chunks WHERE doc_id = $1`, docID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks for document %s: %w", docID, err)
	}
	return n, nil
}
