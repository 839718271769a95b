// Package api exposes the knowledge subsystem over HTTP: batch ingestion,
// document CRUD, and retrieval queries in both vector and keyword modes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atomicwork-labs/kbase/internal/ingest"
	"github.com/atomicwork-labs/kbase/internal/knowledge"
	"github.com/atomicwork-labs/kbase/internal/log"
)

// Server timeouts. Ingestion can spend minutes in transcription and
// embedding, so the write timeout is generous.
const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 15 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 10 * time.Second
)

// Config carries the server's dependencies.
type Config struct {
	Logger log.Logger
	// Store is required.
	Store *knowledge.Store
	// Ranker is required; it serves keyword-mode queries.
	Ranker *knowledge.Ranker
	// Engine serves vector-mode queries. nil disables vector mode (503).
	Engine *knowledge.Engine
	// Pipeline is required; it serves batch ingestion.
	Pipeline *ingest.Pipeline
	// Pool backs the readiness probe. nil reports ready unconditionally.
	Pool *pgxpool.Pool
}

// Server is the knowledge HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	store    *knowledge.Store
	ranker   *knowledge.Ranker
	engine   *knowledge.Engine
	pipeline *ingest.Pipeline
	pool     *pgxpool.Pool
}

// NewServer creates a Server with all routes configured.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Ranker == nil {
		return nil, errors.New("ranker is required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger,
		store:    cfg.Store,
		ranker:   cfg.Ranker,
		engine:   cfg.Engine,
		pipeline: cfg.Pipeline,
		pool:     cfg.Pool,
	}

	// Probes stay outside the middleware stack.
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)

	s.mux.HandleFunc("POST /api/knowledge/ingest", s.handleIngest)
	s.mux.HandleFunc("POST /api/knowledge/docs", s.handleCreateDoc)
	s.mux.HandleFunc("GET /api/knowledge/docs", s.handleListDocs)
	s.mux.HandleFunc("GET /api/knowledge/docs/{id}", s.handleGetDoc)
	s.mux.HandleFunc("PATCH /api/knowledge/docs/{id}", s.handleUpdateDoc)
	s.mux.HandleFunc("POST /api/knowledge/docs/{id}/reembed", s.handleReembed)
	s.mux.HandleFunc("POST /api/knowledge/query", s.handleQuery)

	return s, nil
}

// ServeHTTP implements http.Handler with the middleware stack: recovery
// catches panics from every layer below, tracing opens one span per request,
// logging tracks requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var handler http.Handler = s.mux
	handler = Logging(s.logger)(handler)
	handler = Tracing()(handler)
	handler = Recovery(s.logger)(handler)
	handler.ServeHTTP(w, r)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
