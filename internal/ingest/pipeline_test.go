package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/atomicwork-labs/kbase/internal/knowledge"
	"github.com/atomicwork-labs/kbase/internal/storage/memory"
	"github.com/atomicwork-labs/kbase/internal/testutil"
	"github.com/atomicwork-labs/kbase/internal/vector"
)

// staticClassifier returns a fixed classification for every input.
type staticClassifier struct{}

func (staticClassifier) Classify(context.Context, string) (knowledge.Classification, error) {
	return knowledge.Classification{
		Tiers:    []knowledge.Tier{knowledge.TierL1},
		Audience: []knowledge.Audience{knowledge.AudienceGeneral},
		Tags:     []string{"test"},
		Summary:  "a test document",
	}, nil
}

// fakeTranscriber returns fixed text, or an error when set.
type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	return f.text, f.err
}

func newTestPipeline(transcriber Transcriber) (*Pipeline, *memory.Documents) {
	docs := memory.NewDocuments()
	chunks := memory.NewChunks()
	index := vector.New(chunks, testutil.NewWordEmbedder(0), nil)
	store := knowledge.NewStore(docs, index, staticClassifier{}, knowledge.DefaultChunkSize, nil)
	return NewPipeline(store, NewExtractor(transcriber, nil), nil, 2, nil), docs
}

func TestIngestPartialBatchFailure(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)

	items := []Item{
		{Filename: "one.txt", Data: []byte("first document about tickets")},
		{Filename: "two.docx", Data: []byte("unsupported format")},
		{Filename: "three.md", Data: []byte("third document about autonomy")},
	}

	summary, err := pipeline.Ingest(context.Background(), items)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(summary.Results) != 3 {
		t.Fatalf("got %d results, want 3 (one per item)", len(summary.Results))
	}
	if summary.Ingested != 2 || summary.Failed != 1 || summary.Deduped != 0 {
		t.Errorf("buckets = %d/%d/%d (ingested/deduped/failed), want 2/0/1",
			summary.Ingested, summary.Deduped, summary.Failed)
	}

	byName := make(map[string]Result, len(summary.Results))
	for _, r := range summary.Results {
		byName[r.Filename] = r
	}
	if !byName["one.txt"].Success || !byName["three.md"].Success {
		t.Error("items 1 and 3 must succeed independently of item 2's failure")
	}
	failed := byName["two.docx"]
	if failed.Success {
		t.Error("unsupported format reported as success")
	}
	if !strings.Contains(failed.Error, "unsupported") {
		t.Errorf("error = %q, want it to name the unsupported format", failed.Error)
	}
}

func TestIngestResultsKeepInputOrder(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)

	items := []Item{
		{Filename: "a.txt", Data: []byte("alpha content here")},
		{Filename: "b.txt", Data: []byte("beta content here")},
		{Filename: "c.txt", Data: []byte("gamma content here")},
	}

	summary, err := pipeline.Ingest(context.Background(), items)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	for i, want := range []string{"a.txt", "b.txt", "c.txt"} {
		if summary.Results[i].Filename != want {
			t.Errorf("result %d = %s, want %s", i, summary.Results[i].Filename, want)
		}
	}
}

func TestIngestDedupedBucket(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)
	ctx := context.Background()

	first, err := pipeline.Ingest(ctx, []Item{{Filename: "doc.txt", Data: []byte("identical body text")}})
	if err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	if first.Ingested != 1 {
		t.Fatalf("first batch ingested = %d, want 1", first.Ingested)
	}

	second, err := pipeline.Ingest(ctx, []Item{{Filename: "copy.txt", Data: []byte("identical body text")}})
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if second.Deduped != 1 || second.Ingested != 0 {
		t.Errorf("second batch buckets = %d/%d (ingested/deduped), want 0/1",
			second.Ingested, second.Deduped)
	}
	if !second.Results[0].Deduped || !second.Results[0].Success {
		t.Errorf("deduped item result = %+v, want success with deduped flag", second.Results[0])
	}
}

// rendezvousClassifier blocks every Classify call until all expected callers
// have arrived, forcing concurrent creates past the dedup scan together.
type rendezvousClassifier struct {
	arrived *sync.WaitGroup
}

func (r rendezvousClassifier) Classify(ctx context.Context, text string) (knowledge.Classification, error) {
	r.arrived.Done()
	r.arrived.Wait()
	return staticClassifier{}.Classify(ctx, text)
}

func TestIngestDuplicateItemsInOneBatch(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)

	docs := memory.NewDocuments()
	chunks := memory.NewChunks()
	index := vector.New(chunks, testutil.NewWordEmbedder(0), nil)
	store := knowledge.NewStore(docs, index, rendezvousClassifier{arrived: &arrived}, knowledge.DefaultChunkSize, nil)
	pipeline := NewPipeline(store, NewExtractor(nil, nil), nil, 2, nil)

	// Both items carry the same body, so both workers pass the initial
	// dedup scan before either inserts. Exactly one document must win.
	summary, err := pipeline.Ingest(context.Background(), []Item{
		{Filename: "deck.txt", Data: []byte("identical body uploaded twice in one batch")},
		{Filename: "deck-copy.txt", Data: []byte("identical body uploaded twice in one batch")},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if summary.Ingested != 1 || summary.Deduped != 1 || summary.Failed != 0 {
		t.Errorf("buckets = %d/%d/%d (ingested/deduped/failed), want 1/1/0",
			summary.Ingested, summary.Deduped, summary.Failed)
	}
	stored, err := docs.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d documents, want 1", len(stored))
	}
}

func TestIngestEmptyContent(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)

	summary, err := pipeline.Ingest(context.Background(),
		[]Item{{Filename: "blank.txt", Data: []byte("   \n\t  ")}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	result := summary.Results[0]
	if result.Success {
		t.Fatal("whitespace-only content reported as success")
	}
	if !strings.Contains(result.Error, "no extractable text") {
		t.Errorf("error = %q, want the no-extractable-text hint", result.Error)
	}
}

func TestIngestBatchTooLarge(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)

	items := make([]Item, MaxBatchSize+1)
	for i := range items {
		items[i] = Item{Filename: "f.txt", Data: []byte("x")}
	}
	if _, err := pipeline.Ingest(context.Background(), items); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("Ingest() error = %v, want ErrBatchTooLarge", err)
	}
}

func TestIngestDocumentFields(t *testing.T) {
	pipeline, docs := newTestPipeline(nil)

	summary, err := pipeline.Ingest(context.Background(), []Item{{
		Filename:      "Pitch Deck Notes.md",
		Data:          []byte("notes about the platform"),
		ExplicitTiers: []knowledge.Tier{knowledge.TierPlatform},
		PersonaHint:   "cio",
	}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if summary.Ingested != 1 {
		t.Fatalf("ingested = %d, want 1: %+v", summary.Ingested, summary.Results)
	}

	stored, err := docs.List(context.Background())
	if err != nil || len(stored) != 1 {
		t.Fatalf("List() = %v, %v, want one document", stored, err)
	}
	doc := stored[0]
	if doc.Title != "Pitch Deck Notes" {
		t.Errorf("Title = %q, want filename without extension", doc.Title)
	}
	if doc.SourceType != knowledge.SourceUpload {
		t.Errorf("SourceType = %s, want upload", doc.SourceType)
	}
	if doc.Tier != knowledge.TierPlatform {
		t.Errorf("Tier = %s, want explicit Platform", doc.Tier)
	}
	if doc.SourceMeta["originalFilename"] != "Pitch Deck Notes.md" {
		t.Errorf("SourceMeta = %v, want originalFilename recorded", doc.SourceMeta)
	}
	if doc.SourceMeta["personaHint"] != "cio" {
		t.Errorf("SourceMeta = %v, want personaHint recorded", doc.SourceMeta)
	}
}

func TestIngestTranscription(t *testing.T) {
	pipeline, _ := newTestPipeline(&fakeTranscriber{text: "transcribed meeting about tickets"})

	summary, err := pipeline.Ingest(context.Background(),
		[]Item{{Filename: "call.mp3", Data: []byte{0x49, 0x44, 0x33}}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	result := summary.Results[0]
	if !result.Success {
		t.Fatalf("transcribed item failed: %s", result.Error)
	}
	if result.Doc.Body != "transcribed meeting about tickets" {
		t.Errorf("Body = %q, want the transcript", result.Doc.Body)
	}
}

func TestIngestTranscriberMissing(t *testing.T) {
	pipeline, _ := newTestPipeline(nil)

	summary, err := pipeline.Ingest(context.Background(),
		[]Item{{Filename: "call.mp3", Data: []byte{0x49}}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	result := summary.Results[0]
	if result.Success {
		t.Fatal("audio item succeeded without a transcription service")
	}
	if !strings.Contains(result.Error, "transcription service") {
		t.Errorf("error = %q, want it to mention the missing transcription service", result.Error)
	}
}

func TestIngestTranscriberFailureIsolated(t *testing.T) {
	pipeline, _ := newTestPipeline(&fakeTranscriber{err: errors.New("speech api unavailable")})

	summary, err := pipeline.Ingest(context.Background(), []Item{
		{Filename: "call.mp3", Data: []byte{0x49}},
		{Filename: "notes.txt", Data: []byte("usable text content")},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if summary.Failed != 1 || summary.Ingested != 1 {
		t.Errorf("buckets = %d/%d (ingested/failed), want 1/1", summary.Ingested, summary.Failed)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", "report"},
		{"no extension", "no extension"},
		{"dotted.name.txt", "dotted.name"},
	}
	for _, tt := range tests {
		if got := titleFromFilename(tt.filename); got != tt.want {
			t.Errorf("titleFromFilename(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
