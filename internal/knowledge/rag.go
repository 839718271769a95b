package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atomicwork-labs/kbase/internal/log"
	"github.com/atomicwork-labs/kbase/internal/vector"
)

// overFetchFactor is how many candidate chunks are retrieved per requested
// document. Multiple chunks of the same document collapse into one result,
// so the chunk fetch over-provisions to keep maxDocs distinct documents
// reachable.
const overFetchFactor = 3

// ChunkSearcher is the vector search dependency of the Engine. Satisfied by
// *vector.Index.
type ChunkSearcher interface {
	Search(ctx context.Context, query string, topK int, filter vector.Filter) ([]vector.Match, error)
}

// Persona describes the resolved reader context of a query: the raw role
// string and the audience labels derived from it.
type Persona struct {
	Role     string     `json:"role"`
	Audience []Audience `json:"audience"`
}

// RagResult is the outcome of a retrieval query: the original question, the
// resolved persona (nil when no role was given), and whole documents ranked
// by their best-matching chunk.
type RagResult struct {
	Query       string           `json:"query"`
	Persona     *Persona         `json:"persona,omitempty"`
	MatchedDocs []ScoredDocument `json:"matchedDocs"`
}

// Engine answers free-text questions by similarity search over chunk
// embeddings, then lifts the chunk matches back to whole documents.
type Engine struct {
	docs     DocumentRepository
	searcher ChunkSearcher
	logger   log.Logger
}

// NewEngine creates an Engine. A nil logger falls back to a no-op logger.
func NewEngine(docs DocumentRepository, searcher ChunkSearcher, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		docs:     docs,
		searcher: searcher,
		logger:   logger,
	}
}

// Query retrieves the maxDocs documents most relevant to the question,
// restricted by the tier filter and by the audience derived from
// personaRole.
//
// A document's score is the maximum score among its matched chunks, not a
// sum or average: one highly relevant passage should surface the whole
// document even when the rest of it is unrelated. Chunks whose document id
// no longer resolves, and documents soft-deleted since embedding, are
// skipped.
func (e *Engine) Query(ctx context.Context, query, personaRole string, tiers []Tier, maxDocs int) (RagResult, error) {
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocs
	}

	result := RagResult{Query: query, MatchedDocs: []ScoredDocument{}}

	filter := vector.Filter{Tiers: tierStrings(tiers)}
	if personaRole != "" {
		persona := &Persona{
			Role:     personaRole,
			Audience: AudienceForRole(personaRole),
		}
		filter.Audience = audienceStrings(persona.Audience)
		result.Persona = persona
	}

	matches, err := e.searcher.Search(ctx, query, maxDocs*overFetchFactor, filter)
	if err != nil {
		return RagResult{}, fmt.Errorf("vector search: %w", err)
	}

	// Group chunk matches by owning document, keeping the best score and
	// the order in which documents first appear (stable tie-break).
	bestScore := make(map[string]float64, len(matches))
	docOrder := make([]string, 0, len(matches))
	for _, m := range matches {
		score, seen := bestScore[m.DocID]
		if !seen {
			docOrder = append(docOrder, m.DocID)
		}
		if !seen || m.Score > score {
			bestScore[m.DocID] = m.Score
		}
	}

	for _, docID := range docOrder {
		doc, err := e.docs.Get(ctx, docID)
		if errors.Is(err, ErrNotFound) {
			// Chunks can outlive their document only after inconsistent
			// writes; surface it in logs but keep answering.
			e.logger.Warn("chunk references missing document", "doc_id", docID)
			continue
		}
		if err != nil {
			return RagResult{}, fmt.Errorf("resolving document %s: %w", docID, err)
		}
		if !doc.IsActive {
			continue
		}
		result.MatchedDocs = append(result.MatchedDocs, ScoredDocument{
			Document: doc,
			Score:    bestScore[docID],
		})
	}

	sort.SliceStable(result.MatchedDocs, func(i, j int) bool {
		return result.MatchedDocs[i].Score > result.MatchedDocs[j].Score
	})
	if len(result.MatchedDocs) > maxDocs {
		result.MatchedDocs = result.MatchedDocs[:maxDocs]
	}

	e.logger.Debug("rag query answered",
		"query", query,
		"chunk_matches", len(matches),
		"docs", len(result.MatchedDocs))
	return result, nil
}

// AudienceForRole maps a free-text persona role to audience labels with
// case-insensitive substring heuristics. An empty result means no audience
// restriction applies.
func AudienceForRole(role string) []Audience {
	r := strings.ToLower(role)
	switch {
	case strings.Contains(r, "cio"):
		return []Audience{AudienceCIO, AudienceBroadExecutive}
	case strings.Contains(r, "ciso"):
		return []Audience{AudienceCISO}
	case strings.Contains(r, "ops") || strings.Contains(r, "it"):
		return []Audience{AudienceVPITOps, AudienceServiceDeskManager}
	case strings.Contains(r, "sre") || strings.Contains(r, "platform"):
		return []Audience{AudienceSREManager}
	default:
		return nil
	}
}
