package knowledge

import (
	"context"
	"sort"
	"strings"
)

// DefaultMaxDocs is the result limit used when a query passes maxDocs <= 0.
const DefaultMaxDocs = 5

// audienceMatchScore, wordMatchScore, and platformBonus are the additive
// weights of the keyword ranker. Audience alignment dominates: a document
// written for the reader's role outranks one that merely mentions the query
// terms.
const (
	audienceMatchScore = 2.0
	wordMatchScore     = 0.5
	platformBonus      = 0.5
)

// Ranker is the keyword retrieval path: additive substring scoring over
// document metadata and text. It needs no embedding calls, which keeps it
// usable offline and as a fallback when the vector infrastructure is down.
type Ranker struct {
	docs DocumentRepository
}

// NewRanker creates a Ranker over the given repository.
func NewRanker(docs DocumentRepository) *Ranker {
	return &Ranker{docs: docs}
}

// Query scores all active documents against the query and persona role and
// returns the top maxDocs, score descending.
//
// The tier filter is hard: a document whose display tier is absent from a
// non-empty tiers list is excluded entirely, never merely down-ranked.
func (r *Ranker) Query(ctx context.Context, query, personaRole string, tiers []Tier, maxDocs int) ([]ScoredDocument, error) {
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocs
	}

	docs, err := r.docs.List(ctx)
	if err != nil {
		return nil, err
	}

	role := strings.ToLower(personaRole)
	words := strings.Fields(strings.ToLower(query))

	scored := make([]ScoredDocument, 0, len(docs))
	for _, doc := range docs {
		if !doc.IsActive {
			continue
		}
		if len(tiers) > 0 && !containsTier(tiers, doc.Tier) {
			continue
		}
		scored = append(scored, ScoredDocument{
			Document: doc,
			Score:    scoreDocument(doc, role, words),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > maxDocs {
		scored = scored[:maxDocs]
	}
	return scored, nil
}

// scoreDocument computes the additive keyword score for one document.
func scoreDocument(doc Document, role string, queryWords []string) float64 {
	var score float64

	if audienceMatchesRole(doc.Audience, role) {
		score += audienceMatchScore
	}

	haystack := strings.ToLower(strings.Join([]string{
		doc.Title,
		doc.Summary,
		doc.Body,
		strings.Join(doc.Tags, " "),
	}, " "))
	for _, word := range queryWords {
		if strings.Contains(haystack, word) {
			score += wordMatchScore
		}
	}

	// Platform-tier documents are broadly relevant across personas.
	if doc.Tier == TierPlatform {
		score += platformBonus
	}

	return score
}

// audienceMatchesRole reports whether any audience label matches the
// case-folded persona role. A label matches when its underscore-stripped
// form, or just its first underscore-delimited segment, appears as a
// substring of the role: "VP_IT_Ops" matches "vpitops director" via the
// stripped form and "VP of Infrastructure" via the "vp" segment.
func audienceMatchesRole(audience []Audience, role string) bool {
	if role == "" {
		return false
	}
	role = strings.ToLower(role)
	for _, a := range audience {
		label := strings.ToLower(string(a))
		stripped := strings.ReplaceAll(label, "_", "")
		first, _, _ := strings.Cut(label, "_")
		if strings.Contains(role, stripped) || strings.Contains(role, first) {
			return true
		}
	}
	return false
}

func containsTier(tiers []Tier, t Tier) bool {
	for _, candidate := range tiers {
		if candidate == t {
			return true
		}
	}
	return false
}
