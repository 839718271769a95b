package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/atomicwork-labs/kbase/db"
	"github.com/atomicwork-labs/kbase/internal/classify"
	"github.com/atomicwork-labs/kbase/internal/config"
	"github.com/atomicwork-labs/kbase/internal/ingest"
	"github.com/atomicwork-labs/kbase/internal/knowledge"
	"github.com/atomicwork-labs/kbase/internal/log"
	"github.com/atomicwork-labs/kbase/internal/observability"
	"github.com/atomicwork-labs/kbase/internal/ocr"
	"github.com/atomicwork-labs/kbase/internal/storage/postgres"
	"github.com/atomicwork-labs/kbase/internal/transcribe"
	"github.com/atomicwork-labs/kbase/internal/vector"
)

// app bundles the wired components a command needs. newLiteApp wires only
// the database-backed pieces (enough for listing and keyword queries);
// newApp additionally wires Genkit, the embedder, classifier, and the
// transcription service for the AI-dependent paths.
type app struct {
	cfg    *config.Config
	logger log.Logger
	pool   *pgxpool.Pool

	docs   *postgres.Documents
	ranker *knowledge.Ranker

	// AI-dependent components; nil in a lite app.
	store    *knowledge.Store
	engine   *knowledge.Engine
	pipeline *ingest.Pipeline

	shutdowns []func(context.Context) error
}

// newLiteApp wires config, logging, and storage. No AI credentials needed.
func newLiteApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	a := &app{cfg: cfg, logger: logger}

	if cfg.TracingEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.OTLPEndpoint,
			Environment: cfg.Environment,
			ServiceName: cfg.ServiceName,
		})
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.shutdowns = append(a.shutdowns, shutdown)
	}

	if err := db.Migrate(cfg.ConnString()); err != nil {
		a.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg.ConnString())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	a.pool = pool
	a.shutdowns = append(a.shutdowns, func(context.Context) error {
		pool.Close()
		return nil
	})

	a.docs = postgres.NewDocuments(pool)
	a.ranker = knowledge.NewRanker(a.docs)
	return a, nil
}

// newApp wires the full stack including the AI collaborators.
func newApp(ctx context.Context) (*app, error) {
	a, err := newLiteApp(ctx)
	if err != nil {
		return nil, err
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		a.Close()
		return nil, fmt.Errorf("initializing genkit")
	}

	embedder := googlegenai.GoogleAIEmbedder(g, a.cfg.EmbedderModel)
	classifier := classify.New(g, a.cfg.ClassifierModel, a.logger)

	chunks := postgres.NewChunks(a.pool)
	index := vector.New(chunks, embedder, a.logger)

	a.store = knowledge.NewStore(a.docs, index, classifier, a.cfg.ChunkSize, a.logger)
	a.engine = knowledge.NewEngine(a.docs, index, a.logger)

	// Transcription is best-effort: without credentials, audio/video items
	// fail individually while text and PDF ingestion keeps working.
	var transcriber ingest.Transcriber
	if svc, err := transcribe.New(ctx, a.cfg.GoogleCredentialsFile, a.logger); err != nil {
		a.logger.Warn("transcription unavailable, audio/video ingestion disabled", "error", err)
	} else {
		transcriber = svc
		a.shutdowns = append(a.shutdowns, func(context.Context) error {
			return svc.Close()
		})
	}

	// The classifier model is multimodal and also serves the vision OCR
	// fallback for image-only PDFs.
	ocrService := ocr.New(g, a.cfg.ClassifierModel, a.logger)

	limiter := rate.NewLimiter(rate.Limit(a.cfg.AIRateLimit), a.cfg.IngestConcurrency)
	a.pipeline = ingest.NewPipeline(a.store, ingest.NewExtractor(transcriber, ocrService), limiter, a.cfg.IngestConcurrency, a.logger)
	return a, nil
}

// Close releases resources in reverse wiring order.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		if err := a.shutdowns[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
}
