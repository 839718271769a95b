package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/atomicwork-labs/kbase/internal/knowledge"
	"github.com/atomicwork-labs/kbase/internal/vector"
)

func TestDocumentsCRUD(t *testing.T) {
	repo := NewDocuments()
	ctx := context.Background()

	doc := knowledge.Document{ID: "d1", Title: "first", IsActive: true}
	if err := repo.Insert(ctx, doc); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := repo.Insert(ctx, knowledge.Document{ID: "d2", Title: "second"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "first" {
		t.Errorf("Get() title = %q, want %q", got.Title, "first")
	}

	doc.Title = "renamed"
	if err := repo.Update(ctx, doc); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.Get(ctx, "d1")
	if got.Title != "renamed" {
		t.Errorf("title after update = %q, want %q", got.Title, "renamed")
	}

	docs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "d1" || docs[1].ID != "d2" {
		t.Errorf("List() = %v, want insertion order d1, d2", docs)
	}
}

func TestDocumentsNotFound(t *testing.T) {
	repo := NewDocuments()
	ctx := context.Background()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, knowledge.Document{ID: "missing"}); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentsConcurrentAccess(t *testing.T) {
	repo := NewDocuments()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = repo.Insert(ctx, knowledge.Document{ID: fmt.Sprintf("d%d", n)})
			_, _ = repo.List(ctx)
		}(i)
	}
	wg.Wait()

	docs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 20 {
		t.Errorf("got %d documents, want 20", len(docs))
	}
}

func TestChunksLifecycle(t *testing.T) {
	repo := NewChunks()
	ctx := context.Background()

	for doc, count := range map[string]int{"a": 2, "b": 3} {
		for i := 0; i < count; i++ {
			chunk := vector.Chunk{
				ID:      vector.ChunkID(doc, i),
				DocID:   doc,
				Ordinal: i,
			}
			if err := repo.Add(ctx, chunk); err != nil {
				t.Fatalf("Add() error = %v", err)
			}
		}
	}

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("All() returned %d chunks, want 5", len(all))
	}

	if n, _ := repo.CountByDoc(ctx, "b"); n != 3 {
		t.Errorf("CountByDoc(b) = %d, want 3", n)
	}

	if err := repo.DeleteByDoc(ctx, "b"); err != nil {
		t.Fatalf("DeleteByDoc() error = %v", err)
	}
	if n, _ := repo.CountByDoc(ctx, "b"); n != 0 {
		t.Errorf("CountByDoc(b) after delete = %d, want 0", n)
	}
	if n, _ := repo.CountByDoc(ctx, "a"); n != 2 {
		t.Errorf("CountByDoc(a) = %d, want 2 (delete must not touch other docs)", n)
	}
}
