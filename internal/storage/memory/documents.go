// Package memory provides in-memory repository implementations backed by
// mutex-guarded slices. They keep insertion order and are safe for
// concurrent use, which makes them the default backing for tests and for
// running without PostgreSQL.
package memory

import (
	"context"
	"sync"

	"github.com/atomicwork-labs/kbase/internal/knowledge"
)

// Documents is an in-memory knowledge.DocumentRepository.
type Documents struct {
	mu   sync.RWMutex
	docs []knowledge.Document
}

// NewDocuments creates an empty document repository.
func NewDocuments() *Documents {
	return &Documents{}
}

// Insert persists a new document.
func (r *Documents) Insert(_ context.Context, doc knowledge.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

// Update replaces an existing document, matching by id.
func (r *Documents) Update(_ context.Context, doc knowledge.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.docs {
		if r.docs[i].ID == doc.ID {
			r.docs[i] = doc
			return nil
		}
	}
	return knowledge.ErrNotFound
}

// Get returns the document with the given id.
func (r *Documents) Get(_ context.Context, id string) (knowledge.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return knowledge.Document{}, knowledge.ErrNotFound
}

// List returns all documents in insertion order.
func (r *Documents) List(_ context.Context) ([]knowledge.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]knowledge.Document(nil), r.docs...), nil
}
