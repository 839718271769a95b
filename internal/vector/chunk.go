// Package vector persists chunk embeddings and performs filtered
// nearest-neighbor search over them.
//
// The Index embeds content through a Genkit ai.Embedder and stores the
// resulting chunks via an injected ChunkRepository. Search is a brute-force
// cosine scan over the full chunk set: at the document volumes this system
// handles (hundreds of chunks) a linear scan is simpler and fast enough, so
// no approximate-NN structure is maintained. This is a known scaling limit,
// not a defect.
//
// Chunk metadata is a denormalized snapshot of the owning document's labels
// taken at embedding time. It is intentionally not kept in sync with later
// document edits; see knowledge.Store.Reembed for the explicit refresh path.
package vector

import (
	"context"
	"fmt"
)

// Meta is the snapshot of document labels attached to a chunk when it is
// embedded. Labels are plain strings here; the knowledge package converts
// from its typed labels at the call site, keeping this package free of
// domain imports.
type Meta struct {
	Tiers      []string `json:"tiers"`
	Audience   []string `json:"audience"`
	Tags       []string `json:"tags"`
	Title      string   `json:"title"`
	SourceType string   `json:"sourceType"`
}

// Chunk is a bounded-length slice of a document's body together with its
// embedding. The id is "{docID}::{ordinal}" where ordinals are gapless and
// start at 0 per document at creation time.
type Chunk struct {
	ID        string    `json:"id"`
	DocID     string    `json:"docId"`
	Ordinal   int       `json:"ordinal"`
	Content   string    `json:"content"`
	Meta      Meta      `json:"meta"`
	Embedding []float32 `json:"embedding"`
}

// ChunkID builds the composite chunk identifier.
func ChunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s::%d", docID, ordinal)
}

// Match is a chunk returned from Search with its similarity score.
type Match struct {
	Chunk
	Score float64 `json:"score"`
}

// Filter restricts a search to chunks whose metadata intersects the given
// label sets. An empty slice means no restriction on that dimension.
type Filter struct {
	Tiers    []string
	Audience []string
}

// ChunkRepository is the durable storage interface the Index depends on.
// The chunk collection has no foreign-key relationship to the document
// collection: consistency is maintained only by write ordering (document
// persisted before its chunks).
type ChunkRepository interface {
	// Add persists a chunk.
	Add(ctx context.Context, chunk Chunk) error

	// All returns every stored chunk in insertion order.
	All(ctx context.Context) ([]Chunk, error)

	// DeleteByDoc removes all chunks belonging to a document.
	DeleteByDoc(ctx context.Context, docID string) error

	// CountByDoc returns the number of chunks stored for a document.
	CountByDoc(ctx context.Context, docID string) (int, error)
}
