package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/atomicwork-labs/kbase/internal/ingest"
	"github.com/atomicwork-labs/kbase/internal/knowledge"
)

// maxIngestMemory caps how much multipart data is buffered in memory;
// larger uploads spill to disk.
const maxIngestMemory = 64 << 20

// handleIngest accepts a multipart batch under the "files" field, with
// optional "tiers", "audience", and "personaHint" fields applied to every
// item.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxIngestMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided (use the \"files\" field)")
		return
	}

	tiers := parseTiers(splitList(r.FormValue("tiers")))
	audience := parseAudience(splitList(r.FormValue("audience")))
	personaHint := r.FormValue("personaHint")

	items := make([]ingest.Item, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("opening %s: %v", header.Filename, err))
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("reading %s: %v", header.Filename, err))
			return
		}
		items = append(items, ingest.Item{
			Filename:         header.Filename,
			Data:             data,
			ExplicitTiers:    tiers,
			ExplicitAudience: audience,
			PersonaHint:      personaHint,
		})
	}

	summary, err := s.pipeline.Ingest(r.Context(), items)
	if errors.Is(err, ingest.ErrBatchTooLarge) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type createDocRequest struct {
	Title      string               `json:"title"`
	Body       string               `json:"body"`
	SourceType knowledge.SourceType `json:"sourceType"`
	Tiers      []knowledge.Tier     `json:"tiers"`
	Audience   []knowledge.Audience `json:"audience"`
}

type createDocResponse struct {
	Doc     knowledge.Document `json:"doc"`
	Deduped bool               `json:"deduped"`
}

func (s *Server) handleCreateDoc(w http.ResponseWriter, r *http.Request) {
	var req createDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	doc, deduped, err := s.store.Create(r.Context(), knowledge.CreateRequest{
		Title:            req.Title,
		Body:             req.Body,
		SourceType:       req.SourceType,
		ExplicitTiers:    req.Tiers,
		ExplicitAudience: req.Audience,
	})
	if errors.Is(err, knowledge.ErrEmptyTitle) || errors.Is(err, knowledge.ErrEmptyBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusCreated
	if deduped {
		status = http.StatusOK
	}
	writeJSON(w, status, createDocResponse{Doc: doc, Deduped: deduped})
}

func (s *Server) handleListDocs(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []knowledge.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"docs": docs})
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, knowledge.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type updateDocRequest struct {
	Title      *string               `json:"title"`
	Tiers      []knowledge.Tier      `json:"tiers"`
	Audience   []knowledge.Audience  `json:"audience"`
	Tags       []string              `json:"tags"`
	Summary    *string               `json:"summary"`
	Body       *string               `json:"body"`
	SourceType *knowledge.SourceType `json:"sourceType"`
	IsActive   *bool                 `json:"isActive"`
}

func (s *Server) handleUpdateDoc(w http.ResponseWriter, r *http.Request) {
	var req updateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	doc, err := s.store.Update(r.Context(), r.PathValue("id"), knowledge.UpdateRequest{
		Title:      req.Title,
		Tiers:      req.Tiers,
		Audience:   req.Audience,
		Tags:       req.Tags,
		Summary:    req.Summary,
		Body:       req.Body,
		SourceType: req.SourceType,
		IsActive:   req.IsActive,
	})
	if errors.Is(err, knowledge.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleReembed(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.store.Reembed(r.Context(), r.PathValue("id"))
	if errors.Is(err, knowledge.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"chunks": chunks})
}

type queryRequest struct {
	Query       string           `json:"query"`
	PersonaRole string           `json:"personaRole"`
	Tiers       []knowledge.Tier `json:"tiers"`
	MaxDocs     int              `json:"maxDocs"`
	// Mode selects the retrieval path: "vector" (semantic, default when
	// available) or "keyword" (no embedding calls).
	Mode string `json:"mode"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	mode := req.Mode
	if mode == "" {
		if s.engine != nil {
			mode = "vector"
		} else {
			mode = "keyword"
		}
	}

	switch mode {
	case "vector":
		if s.engine == nil {
			writeError(w, http.StatusServiceUnavailable, "vector search not configured")
			return
		}
		result, err := s.engine.Query(r.Context(), req.Query, req.PersonaRole, req.Tiers, req.MaxDocs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "keyword":
		docs, err := s.ranker.Query(r.Context(), req.Query, req.PersonaRole, req.Tiers, req.MaxDocs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if docs == nil {
			docs = []knowledge.ScoredDocument{}
		}
		writeJSON(w, http.StatusOK, knowledge.RagResult{Query: req.Query, MatchedDocs: docs})
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown query mode %q", mode))
	}
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseTiers(values []string) []knowledge.Tier {
	out := make([]knowledge.Tier, len(values))
	for i, v := range values {
		out[i] = knowledge.Tier(v)
	}
	return out
}

func parseAudience(values []string) []knowledge.Audience {
	out := make([]knowledge.Audience, len(values))
	for i, v := range values {
		out[i] = knowledge.Audience(v)
	}
	return out
}
