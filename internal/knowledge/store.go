package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atomicwork-labs/kbase/internal/log"
	"github.com/atomicwork-labs/kbase/internal/vector"
)

const (
	// classifierInputLimit caps how much document text is sent to the
	// classifier. Classifiers must tolerate this truncation.
	classifierInputLimit = 4000

	// dedupPrefixLen is how many leading characters of two bodies are
	// compared for the near-duplicate rule.
	dedupPrefixLen = 400

	// fallbackSummaryLen is the summary length used when classification
	// fails entirely.
	fallbackSummaryLen = 140

	// defaultSummaryLen is the summary length used when the classifier
	// succeeds but returns no summary.
	defaultSummaryLen = 160
)

// fallbackTags are applied when classification fails entirely.
var fallbackTags = []string{"atomicwork", "autonomy"}

// ChunkIndexer is the chunk/embed handoff the Store calls after persisting
// a fresh document. Satisfied by *vector.Index.
type ChunkIndexer interface {
	AddChunk(ctx context.Context, docID string, ordinal int, content string, meta vector.Meta) error
	DeleteDocument(ctx context.Context, docID string) error
}

// Store manages knowledge documents: creation with dedup and classification,
// partial updates, and the explicit re-embed path.
//
// Create is not transactional across the document and chunk collections: the
// document is persisted first, then chunks are embedded one by one. A
// failure mid-embedding leaves a document with fewer chunks than expected
// (possibly none); the document stays searchable by metadata and the gap is
// repairable via Reembed. This is a deliberate choice over rolling back.
type Store struct {
	docs       DocumentRepository
	index      ChunkIndexer
	classifier Classifier
	chunkSize  int
	logger     log.Logger

	// createMu serializes the dedup-check/insert section of Create so
	// concurrent creates of the same content cannot both pass the scan.
	createMu sync.Mutex
}

// NewStore creates a Store. chunkSize <= 0 falls back to DefaultChunkSize;
// a nil logger falls back to a no-op logger.
func NewStore(docs DocumentRepository, index ChunkIndexer, classifier Classifier, chunkSize int, logger log.Logger) *Store {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		docs:       docs,
		index:      index,
		classifier: classifier,
		chunkSize:  chunkSize,
		logger:     logger,
	}
}

// CreateRequest carries the inputs for Store.Create.
type CreateRequest struct {
	Title      string
	Body       string
	SourceType SourceType
	// ExplicitTiers, when non-empty, overrides the classifier's tier
	// suggestion. Classification still runs for tags and summary.
	ExplicitTiers []Tier
	// ExplicitAudience, when non-empty, overrides the classifier's
	// audience suggestion.
	ExplicitAudience []Audience
	SourceMeta       map[string]string
}

// Create persists a new document unless an equivalent one already exists.
//
// Dedup rule: a document is a duplicate if an existing document has the same
// content hash (exact re-upload), or the same title and the same first 400
// characters of body (near-duplicate re-ingestion with trivial trailing
// differences such as OCR noise). On duplicate the existing document is
// returned unchanged with deduped=true and no classification or embedding
// work is performed.
//
// Concurrent creates of the same content are safe: the dedup scan runs once
// before classification (the cheap early exit) and again while holding
// createMu together with the insert, so exactly one of two racing creates
// persists and the other observes it as a duplicate.
func (s *Store) Create(ctx context.Context, req CreateRequest) (Document, bool, error) {
	if strings.TrimSpace(req.Title) == "" {
		return Document{}, false, ErrEmptyTitle
	}
	if strings.TrimSpace(req.Body) == "" {
		return Document{}, false, ErrEmptyBody
	}

	contentHash := hashBody(req.Body)

	if dup, found, err := s.findDuplicate(ctx, req.Title, req.Body, contentHash); err != nil {
		return Document{}, false, err
	} else if found {
		return dup, true, nil
	}

	// Classification always runs to produce tags and summary; explicit
	// tier/audience values override its suggestions when present.
	cls := s.classify(ctx, req.Body)

	tiers := sanitizeTiers(req.ExplicitTiers)
	if len(tiers) == 0 {
		tiers = cls.Tiers
	}
	audience := sanitizeAudience(req.ExplicitAudience)
	if len(audience) == 0 {
		audience = cls.Audience
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = SourceManual
	}

	now := time.Now().UTC()
	doc := Document{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Tier:        DisplayTier(tiers),
		Tiers:       tiers,
		Audience:    audience,
		Tags:        cls.Tags,
		Summary:     cls.Summary,
		Body:        req.Body,
		SourceType:  sourceType,
		SourceMeta:  req.SourceMeta,
		ContentHash: contentHash,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Re-check under the lock: another create may have inserted an
	// equivalent document while classification was in flight.
	s.createMu.Lock()
	if dup, found, err := s.findDuplicate(ctx, req.Title, req.Body, contentHash); err != nil {
		s.createMu.Unlock()
		return Document{}, false, err
	} else if found {
		s.createMu.Unlock()
		return dup, true, nil
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		s.createMu.Unlock()
		return Document{}, false, fmt.Errorf("persisting document: %w", err)
	}
	s.createMu.Unlock()

	stored, total := s.embedChunks(ctx, doc)
	s.logger.Info("document created",
		"id", doc.ID,
		"title", doc.Title,
		"tier", doc.Tier,
		"chunks_stored", stored,
		"chunks_total", total)

	return doc, false, nil
}

// findDuplicate scans existing documents for one matching either dedup rule.
func (s *Store) findDuplicate(ctx context.Context, title, body, contentHash string) (Document, bool, error) {
	existing, err := s.docs.List(ctx)
	if err != nil {
		return Document{}, false, fmt.Errorf("listing documents for dedup: %w", err)
	}
	for _, d := range existing {
		if d.ContentHash == contentHash ||
			(d.Title == title && firstRunes(d.Body, dedupPrefixLen) == firstRunes(body, dedupPrefixLen)) {
			s.logger.Debug("duplicate document", "existing_id", d.ID, "title", title)
			return d, true, nil
		}
	}
	return Document{}, false, nil
}

// UpdateRequest carries a partial update; nil pointer fields and nil slices
// keep their previous values.
type UpdateRequest struct {
	Title      *string
	Tiers      []Tier
	Audience   []Audience
	Tags       []string
	Summary    *string
	Body       *string
	SourceType *SourceType
	IsActive   *bool
}

// Update applies a partial update to an existing document. The id, creation
// timestamp, and content hash are not directly settable: the hash is
// recomputed when the body changes. Chunks are deliberately NOT regenerated
// on body edits; call Reembed to refresh them.
func (s *Store) Update(ctx context.Context, id string, req UpdateRequest) (Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}

	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.Tiers != nil {
		tiers := sanitizeTiers(req.Tiers)
		if len(tiers) == 0 {
			tiers = []Tier{TierPlatform}
		}
		doc.Tiers = tiers
		doc.Tier = DisplayTier(tiers)
	}
	if req.Audience != nil {
		audience := sanitizeAudience(req.Audience)
		if len(audience) == 0 {
			audience = []Audience{AudienceGeneral}
		}
		doc.Audience = audience
	}
	if req.Tags != nil {
		doc.Tags = req.Tags
	}
	if req.Summary != nil {
		doc.Summary = *req.Summary
	}
	if req.Body != nil && *req.Body != doc.Body {
		doc.Body = *req.Body
		doc.ContentHash = hashBody(doc.Body)
	}
	if req.SourceType != nil {
		doc.SourceType = *req.SourceType
	}
	if req.IsActive != nil {
		doc.IsActive = *req.IsActive
	}
	doc.UpdatedAt = time.Now().UTC()

	if err := s.docs.Update(ctx, doc); err != nil {
		return Document{}, err
	}

	s.logger.Debug("document updated", "id", doc.ID)
	return doc, nil
}

// List returns all documents in insertion order.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	return s.docs.List(ctx)
}

// Get returns a single document by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	return s.docs.Get(ctx, id)
}

// Reembed drops and re-creates the chunks for a document from its current
// body and labels. This is the explicit repair path for stale chunk
// metadata after edits and for documents left chunkless by an embedding
// failure during creation. Returns the number of chunks stored.
func (s *Store) Reembed(ctx context.Context, id string) (int, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := s.index.DeleteDocument(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("clearing chunks: %w", err)
	}

	stored, total := s.embedChunks(ctx, doc)
	if stored < total {
		return stored, fmt.Errorf("re-embed incomplete: stored %d of %d chunks", stored, total)
	}
	return stored, nil
}

// embedChunks chunks the document body and stores one embedding per chunk.
// The first embedding failure stops the loop so ordinals stay gapless; the
// document is kept either way. Returns (stored, total).
func (s *Store) embedChunks(ctx context.Context, doc Document) (int, int) {
	chunks := ChunkText(doc.Body, s.chunkSize)
	meta := vector.Meta{
		Tiers:      tierStrings(doc.Tiers),
		Audience:   audienceStrings(doc.Audience),
		Tags:       doc.Tags,
		Title:      doc.Title,
		SourceType: string(doc.SourceType),
	}

	for i, content := range chunks {
		if err := s.index.AddChunk(ctx, doc.ID, i, content, meta); err != nil {
			s.logger.Warn("chunk embedding failed, document remains searchable by metadata only",
				"doc_id", doc.ID,
				"ordinal", i,
				"stored", i,
				"total", len(chunks),
				"error", err)
			return i, len(chunks)
		}
	}
	return len(chunks), len(chunks)
}

// classify runs the classifier over the truncated body and normalizes its
// output. Any failure recovers with fallback defaults: classification is
// never fatal to ingestion.
func (s *Store) classify(ctx context.Context, body string) Classification {
	cls, err := s.classifier.Classify(ctx, firstRunes(body, classifierInputLimit))
	if err != nil {
		s.logger.Warn("classification failed, using fallback defaults", "error", err)
		return fallbackClassification(body)
	}

	cls.Tiers = sanitizeTiers(cls.Tiers)
	if len(cls.Tiers) == 0 {
		cls.Tiers = []Tier{TierPlatform}
	}
	cls.Audience = sanitizeAudience(cls.Audience)
	if len(cls.Audience) == 0 {
		cls.Audience = []Audience{AudienceGeneral}
	}
	if cls.Summary == "" {
		cls.Summary = firstRunes(body, defaultSummaryLen)
	}
	return cls
}

// fallbackClassification is the recovery result when the classifier call
// fails or returns unusable output.
func fallbackClassification(body string) Classification {
	return Classification{
		Tiers:    []Tier{TierPlatform},
		Audience: []Audience{AudienceGeneral},
		Tags:     append([]string(nil), fallbackTags...),
		Summary:  firstRunes(body, fallbackSummaryLen),
	}
}

// sanitizeTiers drops unknown tier labels, preserving order.
func sanitizeTiers(tiers []Tier) []Tier {
	out := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if ValidTier(t) {
			out = append(out, t)
		}
	}
	return out
}

// sanitizeAudience drops unknown audience labels, preserving order.
func sanitizeAudience(audience []Audience) []Audience {
	out := make([]Audience, 0, len(audience))
	for _, a := range audience {
		if ValidAudience(a) {
			out = append(out, a)
		}
	}
	return out
}

// hashBody computes the deterministic content digest used for dedup.
func hashBody(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// firstRunes returns the first n characters of s, rune-safe.
func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func tierStrings(tiers []Tier) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}

func audienceStrings(audience []Audience) []string {
	out := make([]string, len(audience))
	for i, a := range audience {
		out[i] = string(a)
	}
	return out
}
