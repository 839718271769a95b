// Package ingest orchestrates turning raw source files into persisted,
// searchable knowledge documents. The pipeline's primary correctness
// property is per-item failure isolation: one item's failure never aborts
// its batch siblings, and every item's outcome is reported back together.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/atomicwork-labs/kbase/internal/knowledge"
	"github.com/atomicwork-labs/kbase/internal/log"
)

// MaxBatchSize is the largest batch a single Ingest call accepts.
const MaxBatchSize = 10

// DefaultConcurrency is the number of items processed in parallel when the
// caller does not configure one. Kept small: every item fans out into
// classification and embedding calls against external quota.
const DefaultConcurrency = 2

var (
	// ErrBatchTooLarge indicates an ingestion batch above MaxBatchSize.
	ErrBatchTooLarge = errors.New("ingestion batch exceeds " + strconv.Itoa(MaxBatchSize) + " items")

	// ErrUnsupportedFormat indicates a file extension outside the allowed set.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrNoExtractableText indicates extraction succeeded but produced no
	// usable text, e.g. an image-only PDF. Distinguished from extraction
	// failure so the caller knows to provide the text directly.
	ErrNoExtractableText = errors.New("no extractable text")
)

// Item is one source file in an ingestion batch. Either Data or Path must be
// set; Path wins when both are.
type Item struct {
	Filename         string
	Data             []byte
	Path             string
	ExplicitTiers    []knowledge.Tier
	ExplicitAudience []knowledge.Audience
	// PersonaHint is recorded in the document's provenance metadata; it
	// does not influence classification.
	PersonaHint string
}

// Result is the outcome of one batch item.
type Result struct {
	Filename string              `json:"filename"`
	Success  bool                `json:"success"`
	Deduped  bool                `json:"deduped,omitempty"`
	Doc      *knowledge.Document `json:"doc,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Summary aggregates a batch's results into the three outcome buckets, so a
// caller can tell "already known" apart from "broke".
type Summary struct {
	Results  []Result `json:"results"`
	Ingested int      `json:"ingested"`
	Deduped  int      `json:"deduped"`
	Failed   int      `json:"failed"`
}

// Pipeline runs ingestion batches against the document store.
type Pipeline struct {
	store       *knowledge.Store
	extractor   *Extractor
	limiter     *rate.Limiter
	concurrency int
	logger      log.Logger
}

// NewPipeline creates a Pipeline. limiter gates the AI-heavy portion of each
// item and may be nil to disable rate limiting; concurrency <= 0 falls back
// to DefaultConcurrency; a nil logger falls back to a no-op logger.
func NewPipeline(store *knowledge.Store, extractor *Extractor, limiter *rate.Limiter, concurrency int, logger log.Logger) *Pipeline {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		store:       store,
		extractor:   extractor,
		limiter:     limiter,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Ingest processes a batch of up to MaxBatchSize items with bounded
// concurrency and returns one result per item, in input order. Per-item
// errors land in the item's result, never in the returned error; the error
// return covers batch-level problems only (oversized batch, cancelled
// context).
func (p *Pipeline) Ingest(ctx context.Context, items []Item) (Summary, error) {
	if len(items) > MaxBatchSize {
		return Summary{}, ErrBatchTooLarge
	}

	results := make([]Result, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = p.processItem(gctx, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	summary := Summary{Results: results}
	for _, r := range results {
		switch {
		case r.Deduped:
			summary.Deduped++
		case r.Success:
			summary.Ingested++
		default:
			summary.Failed++
		}
	}

	p.logger.Info("ingestion batch finished",
		"items", len(items),
		"ingested", summary.Ingested,
		"deduped", summary.Deduped,
		"failed", summary.Failed)
	return summary, nil
}

// processItem runs the full extract/create/embed path for one item. All
// failures are captured into the result.
func (p *Pipeline) processItem(ctx context.Context, item Item) Result {
	result := Result{Filename: item.Filename}

	text, err := p.extractor.Extract(ctx, item)
	if err != nil {
		p.logger.Warn("extraction failed", "filename", item.Filename, "error", err)
		result.Error = err.Error()
		return result
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("%w in %s: provide the text directly instead", ErrNoExtractableText, item.Filename)
		result.Error = err.Error()
		return result
	}

	// The limiter gates only the AI-heavy part: extraction above is local
	// (or billed separately in the transcription service).
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			result.Error = err.Error()
			return result
		}
	}

	doc, deduped, err := p.store.Create(ctx, knowledge.CreateRequest{
		Title:            titleFromFilename(item.Filename),
		Body:             text,
		SourceType:       knowledge.SourceUpload,
		ExplicitTiers:    item.ExplicitTiers,
		ExplicitAudience: item.ExplicitAudience,
		SourceMeta:       sourceMeta(item),
	})
	if err != nil {
		p.logger.Warn("document creation failed", "filename", item.Filename, "error", err)
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Deduped = deduped
	result.Doc = &doc
	return result
}

// titleFromFilename derives the default document title: the filename with
// its extension stripped.
func titleFromFilename(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func sourceMeta(item Item) map[string]string {
	meta := map[string]string{
		"originalFilename": item.Filename,
	}
	if item.Data != nil {
		meta["sizeBytes"] = strconv.Itoa(len(item.Data))
	}
	if item.PersonaHint != "" {
		meta["personaHint"] = item.PersonaHint
	}
	return meta
}
