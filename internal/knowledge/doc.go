// Package knowledge implements the document store, retrieval, and ranking
// core of the kbase knowledge engine.
//
// The package owns:
//   - the KnowledgeDocument data model: tier/audience labels, tags, summary,
//     content hash, soft-delete lifecycle (types.go)
//   - the Store: create with dedup and classification, partial update,
//     explicit re-embed (store.go)
//   - the fixed-width text chunker used for embeddings (chunker.go)
//   - the RAG query engine merging chunk matches into ranked documents
//     (rag.go)
//   - the keyword ranker, a no-embedding fallback retrieval path (ranker.go)
//
// Persistence is abstracted behind DocumentRepository; production wiring uses
// the PostgreSQL implementation in internal/storage/postgres, tests use
// internal/storage/memory. Vector search is delegated to internal/vector.
//
// Design notes:
//   - Documents are never physically deleted. The only removal path is
//     isActive=false via Update, which excludes the document from ranking
//     and search while retaining it in storage.
//   - Editing a document's body does NOT re-embed its chunks. Chunk metadata
//     is a snapshot taken at embedding time and drifts after edits until the
//     caller invokes Store.Reembed.
package knowledge
