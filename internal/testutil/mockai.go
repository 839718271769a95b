// Package testutil provides deterministic AI doubles and database helpers
// for tests. Nothing here talks to an external service.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// DefaultEmbedderDim is the vector width WordEmbedder uses unless configured
// otherwise. Small on purpose: tests never need production-width vectors.
const DefaultEmbedderDim = 64

// WordEmbedder is a deterministic ai.Embedder: each whitespace-separated
// word is hashed into a fixed-width bag-of-words vector, which is then
// L2-normalized. Identical texts embed identically (cosine 1.0) and texts
// sharing words score strictly higher than texts sharing none, which is
// enough signal to test ranking behavior without a real model.
//
// Thread-safe for concurrent use.
type WordEmbedder struct {
	mu    sync.Mutex
	dim   int
	err   error
	calls int
}

// NewWordEmbedder creates a WordEmbedder. dim <= 0 falls back to
// DefaultEmbedderDim.
func NewWordEmbedder(dim int) *WordEmbedder {
	if dim <= 0 {
		dim = DefaultEmbedderDim
	}
	return &WordEmbedder{dim: dim}
}

// Name implements ai.Embedder.
func (e *WordEmbedder) Name() string { return "test/word-embedder" }

// Register implements ai.Embedder as a no-op.
func (e *WordEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (e *WordEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: e.vectorFor(documentText(doc))}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

// Fail makes every subsequent Embed call return err; pass nil to recover.
func (e *WordEmbedder) Fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many times Embed has been invoked.
func (e *WordEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *WordEmbedder) vectorFor(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(e.dim)]++
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag == 0 {
		// Whitespace-only input still needs a non-zero vector so cosine
		// against it stays defined.
		vec[0] = 1
		return vec
	}

	norm := float32(math.Sqrt(mag))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
