package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atomicwork-labs/kbase/internal/knowledge"
)

// Documents is the PostgreSQL knowledge.DocumentRepository.
type Documents struct {
	pool *pgxpool.Pool
}

// NewDocuments creates a document repository over the given pool.
func NewDocuments(pool *pgxpool.Pool) *Documents {
	return &Documents{pool: pool}
}

const insertDocSQL = `
INSERT INTO knowledge_docs
    (id, title, tier, tiers, audience, tags, summary, body,
     source_type, source_meta, content_hash, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// Insert persists a new document.
func (r *Documents) Insert(ctx context.Context, doc knowledge.Document) error {
	sourceMeta, err := encodeSourceMeta(doc.SourceMeta)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, insertDocSQL,
		doc.ID,
		doc.Title,
		string(doc.Tier),
		tierColumn(doc.Tiers),
		audienceColumn(doc.Audience),
		textColumn(doc.Tags),
		doc.Summary,
		doc.Body,
		string(doc.SourceType),
		sourceMeta,
		doc.ContentHash,
		doc.IsActive,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", doc.ID, err)
	}
	return nil
}

const updateDocSQL = `
UPDATE knowledge_docs
SET title = $2, tier = $3, tiers = $4, audience = $5, tags = $6,
    summary = $7, body = $8, source_type = $9, source_meta = $10,
    content_hash = $11, is_active = $12, updated_at = $13
WHERE id = $1`

// Update replaces an existing document, matching by id.
func (r *Documents) Update(ctx context.Context, doc knowledge.Document) error {
	sourceMeta, err := encodeSourceMeta(doc.SourceMeta)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, updateDocSQL,
		doc.ID,
		doc.Title,
		string(doc.Tier),
		tierColumn(doc.Tiers),
		audienceColumn(doc.Audience),
		textColumn(doc.Tags),
		doc.Summary,
		doc.Body,
		string(doc.SourceType),
		sourceMeta,
		doc.ContentHash,
		doc.IsActive,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", doc.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return knowledge.ErrNotFound
	}
	return nil
}

const selectDocColumns = `
    id, title, tier, tiers, audience, tags, summary, body,
    source_type, source_meta, content_hash, is_active, created_at, updated_at`

// Get returns the document with the given id.
func (r *Documents) Get(ctx context.Context, id string) (knowledge.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT`+selectDocColumns+` FROM knowledge_docs WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return knowledge.Document{}, knowledge.ErrNotFound
	}
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("loading document %s: %w", id, err)
	}
	return doc, nil
}

// List returns all documents in insertion order.
func (r *Documents) List(ctx context.Context) ([]knowledge.Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT`+selectDocColumns+` FROM knowledge_docs ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []knowledge.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (knowledge.Document, error) {
	var (
		doc        knowledge.Document
		tier       string
		tiers      []string
		audience   []string
		sourceType string
		sourceMeta []byte
	)
	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&tier,
		&tiers,
		&audience,
		&doc.Tags,
		&doc.Summary,
		&doc.Body,
		&sourceType,
		&sourceMeta,
		&doc.ContentHash,
		&doc.IsActive,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return knowledge.Document{}, err
	}

	doc.Tier = knowledge.Tier(tier)
	doc.Tiers = make([]knowledge.Tier, len(tiers))
	for i, t := range tiers {
		doc.Tiers[i] = knowledge.Tier(t)
	}
	doc.Audience = make([]knowledge.Audience, len(audience))
	for i, a := range audience {
		doc.Audience[i] = knowledge.Audience(a)
	}
	doc.SourceType = knowledge.SourceType(sourceType)
	if len(sourceMeta) > 0 {
		if err := json.Unmarshal(sourceMeta, &doc.SourceMeta); err != nil {
			return knowledge.Document{}, fmt.Errorf("decoding source_meta: %w", err)
		}
	}
	return doc, nil
}

func encodeSourceMeta(meta map[string]string) ([]byte, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding source_meta: %w", err)
	}
	return data, nil
}

// textColumn normalizes a possibly-nil slice for a NOT NULL TEXT[] column.
func textColumn(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func tierColumn(tiers []knowledge.Tier) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}

func audienceColumn(audience []knowledge.Audience) []string {
	out := make([]string, len(audience))
	for i, a := range audience {
		out[i] = string(a)
	}
	return out
}
