package vector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/firebase/genkit/go/ai"

	"github.com/atomicwork-labs/kbase/internal/log"
)

// DefaultTopK is the result limit used when the caller passes topK <= 0.
const DefaultTopK = 8

// Index embeds chunk content and searches stored chunks by cosine
// similarity.
type Index struct {
	repo     ChunkRepository
	embedder ai.Embedder
	logger   log.Logger
}

// New creates an Index. A nil logger falls back to a no-op logger.
func New(repo ChunkRepository, embedder ai.Embedder, logger log.Logger) *Index {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Index{
		repo:     repo,
		embedder: embedder,
		logger:   logger,
	}
}

// AddChunk embeds content and persists the resulting chunk for docID under
// the given ordinal. The meta snapshot is stored alongside the embedding and
// never updated afterwards.
func (x *Index) AddChunk(ctx context.Context, docID string, ordinal int, content string, meta Meta) error {
	embedding, err := x.embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embedding chunk %s: %w", ChunkID(docID, ordinal), err)
	}

	chunk := Chunk{
		ID:        ChunkID(docID, ordinal),
		DocID:     docID,
		Ordinal:   ordinal,
		Content:   content,
		Meta:      meta,
		Embedding: embedding,
	}
	if err := x.repo.Add(ctx, chunk); err != nil {
		return fmt.Errorf("storing chunk %s: %w", chunk.ID, err)
	}

	x.logger.Debug("chunk stored", "id", chunk.ID, "content_length", len(content))
	return nil
}

// Search embeds the query and returns the topK most similar chunks that
// pass the filter, ordered by descending score. Ties keep the original
// storage order (stable sort).
func (x *Index) Search(ctx context.Context, query string, topK int, filter Filter) ([]Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	chunks, err := x.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	queryEmbedding, err := x.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches := make([]Match, 0, len(chunks))
	for _, chunk := range chunks {
		if !passesFilter(chunk.Meta, filter) {
			continue
		}
		matches = append(matches, Match{
			Chunk: chunk,
			Score: Cosine(queryEmbedding, chunk.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteDocument removes all chunks belonging to docID.
func (x *Index) DeleteDocument(ctx context.Context, docID string) error {
	if err := x.repo.DeleteByDoc(ctx, docID); err != nil {
		return fmt.Errorf("deleting chunks for document %q: %w", docID, err)
	}
	return nil
}

// ChunkCount returns the number of chunks stored for docID.
func (x *Index) ChunkCount(ctx context.Context, docID string) (int, error) {
	return x.repo.CountByDoc(ctx, docID)
}

// embed calls the embedder on a single text and unwraps the response.
func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := x.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// passesFilter reports whether a chunk's meta intersects both filter
// dimensions. An empty filter dimension passes everything.
func passesFilter(meta Meta, filter Filter) bool {
	if len(filter.Tiers) > 0 && !intersects(meta.Tiers, filter.Tiers) {
		return false
	}
	if len(filter.Audience) > 0 && !intersects(meta.Audience, filter.Audience) {
		return false
	}
	return true
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// Cosine returns the cosine similarity of two vectors, computed in float64.
// Returns 0 when either vector has zero magnitude (guards divide-by-zero)
// or when the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
