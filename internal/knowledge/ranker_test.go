package knowledge

import (
	"context"
	"math"
	"testing"
)

func activeDoc(id string, tier Tier, audience []Audience, title, summary, body string, tags []string) Document {
	return Document{
		ID:       id,
		Title:    title,
		Tier:     tier,
		Tiers:    []Tier{tier},
		Audience: audience,
		Tags:     tags,
		Summary:  summary,
		Body:     body,
		IsActive: true,
	}
}

func TestRankerScoringExample(t *testing.T) {
	docs := &fakeDocs{docs: []Document{
		activeDoc("d1", TierPlatform, []Audience{AudienceVPITOps},
			"L1 Deflection", "Cuts ticket volume", "", []string{"ai_search"}),
	}}
	ranker := NewRanker(docs)

	results, err := ranker.Query(context.Background(), "ticket volume", "VP IT Ops", nil, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	// 2 (audience) + 0.5 (platform) + 2 * 0.5 (words "ticket", "volume").
	if got := results[0].Score; math.Abs(got-3.5) > 1e-9 {
		t.Errorf("score = %v, want 3.5", got)
	}
}

func TestRankerTierHardFilter(t *testing.T) {
	docs := &fakeDocs{docs: []Document{
		activeDoc("l1", TierL1, nil, "deflection tickets", "", "tickets", nil),
		activeDoc("l3", TierL3, nil, "deflection tickets", "", "tickets", nil),
	}}
	ranker := NewRanker(docs)

	results, err := ranker.Query(context.Background(), "tickets", "", []Tier{TierL1}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (tier filter is hard, not a scoring factor)", len(results))
	}
	if results[0].ID != "l1" {
		t.Errorf("got doc %s, want l1", results[0].ID)
	}
}

func TestRankerSkipsInactive(t *testing.T) {
	retired := activeDoc("old", TierL1, nil, "tickets", "", "tickets", nil)
	retired.IsActive = false
	docs := &fakeDocs{docs: []Document{retired}}
	ranker := NewRanker(docs)

	results, err := ranker.Query(context.Background(), "tickets", "", nil, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0 (inactive documents are excluded)", len(results))
	}
}

func TestRankerTruncatesToMaxDocs(t *testing.T) {
	docs := &fakeDocs{docs: []Document{
		activeDoc("a", TierL1, nil, "tickets one", "", "", nil),
		activeDoc("b", TierL1, nil, "tickets two", "", "", nil),
		activeDoc("c", TierL1, nil, "tickets three", "", "", nil),
	}}
	ranker := NewRanker(docs)

	results, err := ranker.Query(context.Background(), "tickets", "", nil, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestRankerRanksRelevantFirst(t *testing.T) {
	docs := &fakeDocs{docs: []Document{
		activeDoc("a", TierL1, nil, "deflection", "",
			"Atomicwork reduces L1 tickets via AI search", nil),
		activeDoc("b", TierL3, nil, "context layer", "",
			"Atomicwork's CMDL context layer aids change management", nil),
	}}
	ranker := NewRanker(docs)

	results, err := ranker.Query(context.Background(), "reduce tickets", "", nil, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("top result = %s, want a (mentions both query words)", results[0].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestAudienceMatchesRole(t *testing.T) {
	tests := []struct {
		name     string
		audience []Audience
		role     string
		want     bool
	}{
		{"first segment match", []Audience{AudienceVPITOps}, "vp it ops", true},
		{"stripped label match", []Audience{AudienceSREManager}, "senior sremanager", true},
		{"case folded", []Audience{AudienceCIO}, "Deputy CIO", true},
		{"no match", []Audience{AudienceCISO}, "head of marketing", false},
		{"empty role", []Audience{AudienceCIO}, "", false},
		{"no audience", nil, "cio", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audienceMatchesRole(tt.audience, tt.role); got != tt.want {
				t.Errorf("audienceMatchesRole(%v, %q) = %v, want %v", tt.audience, tt.role, got, tt.want)
			}
		})
	}
}
