package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/atomicwork-labs/kbase/internal/testutil"
)

// fakeRepo is an in-test ChunkRepository backed by a slice.
type fakeRepo struct {
	chunks []Chunk
	addErr error
}

func (f *fakeRepo) Add(_ context.Context, chunk Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.chunks = append(f.chunks, chunk)
	return nil
}

func (f *fakeRepo) All(_ context.Context) ([]Chunk, error) {
	return append([]Chunk(nil), f.chunks...), nil
}

func (f *fakeRepo) DeleteByDoc(_ context.Context, docID string) error {
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.DocID != docID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

func (f *fakeRepo) CountByDoc(_ context.Context, docID string) (int, error) {
	n := 0
	for _, c := range f.chunks {
		if c.DocID == docID {
			n++
		}
	}
	return n, nil
}

func newTestIndex(repo *fakeRepo) (*Index, *testutil.WordEmbedder) {
	embedder := testutil.NewWordEmbedder(0)
	return New(repo, embedder, nil), embedder
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("doc-1", 4); got != "doc-1::4" {
		t.Errorf("ChunkID() = %q, want %q", got, "doc-1::4")
	}
}

func TestIndexAddChunk(t *testing.T) {
	repo := &fakeRepo{}
	index, _ := newTestIndex(repo)

	meta := Meta{Tiers: []string{"L1"}, Title: "deflection"}
	if err := index.AddChunk(context.Background(), "doc-1", 0, "reduce ticket volume", meta); err != nil {
		t.Fatalf("AddChunk() error = %v", err)
	}

	if len(repo.chunks) != 1 {
		t.Fatalf("stored %d chunks, want 1", len(repo.chunks))
	}
	chunk := repo.chunks[0]
	if chunk.ID != "doc-1::0" {
		t.Errorf("chunk ID = %q, want %q", chunk.ID, "doc-1::0")
	}
	if len(chunk.Embedding) == 0 {
		t.Error("chunk stored without embedding")
	}
	if len(chunk.Meta.Tiers) != 1 || chunk.Meta.Tiers[0] != "L1" {
		t.Errorf("chunk meta tiers = %v, want [L1]", chunk.Meta.Tiers)
	}
}

func TestIndexAddChunkEmbedFailure(t *testing.T) {
	repo := &fakeRepo{}
	index, embedder := newTestIndex(repo)
	embedder.Fail(errors.New("quota exhausted"))

	err := index.AddChunk(context.Background(), "doc-1", 0, "text", Meta{})
	if err == nil {
		t.Fatal("AddChunk() succeeded with a failing embedder")
	}
	if len(repo.chunks) != 0 {
		t.Error("chunk stored despite embedding failure")
	}
}

func TestIndexSearchRanksIdenticalTextFirst(t *testing.T) {
	repo := &fakeRepo{}
	index, _ := newTestIndex(repo)
	ctx := context.Background()

	texts := []string{
		"atomicwork reduces ticket volume with ai search",
		"the cmdl context layer aids change management",
		"quarterly revenue grew in the emea region",
	}
	for i, text := range texts {
		if err := index.AddChunk(ctx, "doc-1", i, text, Meta{}); err != nil {
			t.Fatalf("AddChunk(%d) error = %v", i, err)
		}
	}

	matches, err := index.Search(ctx, texts[0], 3, Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Ordinal != 0 {
		t.Errorf("top match ordinal = %d, want 0 (identical text)", matches[0].Ordinal)
	}
	if matches[0].Score < 0.999 {
		t.Errorf("identical text score = %v, want ~1.0", matches[0].Score)
	}
	for i, m := range matches {
		if m.Score < -1.0000001 || m.Score > 1.0000001 {
			t.Errorf("match %d score %v outside [-1, 1]", i, m.Score)
		}
	}
	if matches[0].Score < matches[1].Score || matches[1].Score < matches[2].Score {
		t.Error("matches not in descending score order")
	}
}

func TestIndexSearchFilter(t *testing.T) {
	repo := &fakeRepo{}
	index, _ := newTestIndex(repo)
	ctx := context.Background()

	add := func(docID string, meta Meta) {
		t.Helper()
		if err := index.AddChunk(ctx, docID, 0, "shared content words", meta); err != nil {
			t.Fatalf("AddChunk(%s) error = %v", docID, err)
		}
	}
	add("l1-doc", Meta{Tiers: []string{"L1"}, Audience: []string{"CIO"}})
	add("l3-doc", Meta{Tiers: []string{"L3"}, Audience: []string{"CISO"}})
	add("multi-doc", Meta{Tiers: []string{"L1", "L3"}, Audience: []string{"General"}})

	tests := []struct {
		name     string
		filter   Filter
		wantDocs map[string]bool
	}{
		{
			name:     "no filter passes everything",
			filter:   Filter{},
			wantDocs: map[string]bool{"l1-doc": true, "l3-doc": true, "multi-doc": true},
		},
		{
			name:     "tier filter excludes non-intersecting",
			filter:   Filter{Tiers: []string{"L1"}},
			wantDocs: map[string]bool{"l1-doc": true, "multi-doc": true},
		},
		{
			name:     "audience filter",
			filter:   Filter{Audience: []string{"CISO"}},
			wantDocs: map[string]bool{"l3-doc": true},
		},
		{
			name:     "both dimensions must intersect",
			filter:   Filter{Tiers: []string{"L3"}, Audience: []string{"General"}},
			wantDocs: map[string]bool{"multi-doc": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := index.Search(ctx, "shared content words", 10, tt.filter)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(matches) != len(tt.wantDocs) {
				t.Fatalf("got %d matches, want %d", len(matches), len(tt.wantDocs))
			}
			for _, m := range matches {
				if !tt.wantDocs[m.DocID] {
					t.Errorf("match %s violates filter %+v", m.DocID, tt.filter)
				}
			}
		})
	}
}

func TestIndexSearchEmptyStore(t *testing.T) {
	index, embedder := newTestIndex(&fakeRepo{})

	matches, err := index.Search(context.Background(), "anything", 5, Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches from an empty store", len(matches))
	}
	if embedder.Calls() != 0 {
		t.Error("query embedded even though the store is empty")
	}
}

func TestIndexSearchTruncatesTopK(t *testing.T) {
	repo := &fakeRepo{}
	index, _ := newTestIndex(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := index.AddChunk(ctx, "doc-1", i, "some repeated content", Meta{}); err != nil {
			t.Fatalf("AddChunk(%d) error = %v", i, err)
		}
	}

	matches, err := index.Search(ctx, "content", 2, Filter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("got %d matches, want 2", len(matches))
	}
}

func TestIndexDeleteDocument(t *testing.T) {
	repo := &fakeRepo{}
	index, _ := newTestIndex(repo)
	ctx := context.Background()

	for _, docID := range []string{"keep", "drop", "keep"} {
		ord, _ := repo.CountByDoc(ctx, docID)
		if err := index.AddChunk(ctx, docID, ord, "text", Meta{}); err != nil {
			t.Fatalf("AddChunk() error = %v", err)
		}
	}

	if err := index.DeleteDocument(ctx, "drop"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}

	if n, _ := index.ChunkCount(ctx, "drop"); n != 0 {
		t.Errorf("deleted document still has %d chunks", n)
	}
	if n, _ := index.ChunkCount(ctx, "keep"); n != 2 {
		t.Errorf("unrelated document has %d chunks, want 2", n)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}
