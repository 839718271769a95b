package memory

import (
	"context"
	"sync"

	"github.com/atomicwork-labs/kbase/internal/vector"
)

// Chunks is an in-memory vector.ChunkRepository.
type Chunks struct {
	mu     sync.RWMutex
	chunks []vector.Chunk
}

// NewChunks creates an empty chunk repository.
func NewChunks() *Chunks {
	return &Chunks{}
}

// Add persists a chunk.
func (r *Chunks) Add(_ context.Context, chunk vector.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunk)
	return nil
}

// All returns every stored chunk in insertion order.
func (r *Chunks) All(_ context.Context) ([]vector.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]vector.Chunk(nil), r.chunks...), nil
}

// DeleteByDoc removes all chunks belonging to a document.
func (r *Chunks) DeleteByDoc(_ context.Context, docID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.chunks[:0]
	for _, c := range r.chunks {
		if c.DocID != docID {
			kept = append(kept, c)
		}
	}
	r.chunks = kept
	return nil
}

// CountByDoc returns the number of chunks stored for a document.
func (r *Chunks) CountByDoc(_ context.Context, docID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.chunks {
		if c.DocID == docID {
			n++
		}
	}
	return n, nil
}
