package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeOCR records calls and returns fixed text or an error.
type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) ExtractPDFText(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestOCRFallback(t *testing.T) {
	ctx := context.Background()
	item := Item{Filename: "deck.pdf"}

	t.Run("text layer present skips ocr", func(t *testing.T) {
		ocr := &fakeOCR{text: "should not be used"}
		e := NewExtractor(nil, ocr)

		got, err := e.ocrFallback(ctx, item, "/tmp/deck.pdf", "extracted text layer")
		if err != nil {
			t.Fatalf("ocrFallback() error = %v", err)
		}
		if got != "extracted text layer" {
			t.Errorf("text = %q, want the pdftotext output untouched", got)
		}
		if ocr.calls != 0 {
			t.Errorf("ocr called %d times for a PDF with a text layer, want 0", ocr.calls)
		}
	})

	t.Run("empty text layer recovered by ocr", func(t *testing.T) {
		ocr := &fakeOCR{text: "scanned page content"}
		e := NewExtractor(nil, ocr)

		got, err := e.ocrFallback(ctx, item, "/tmp/deck.pdf", "  \n ")
		if err != nil {
			t.Fatalf("ocrFallback() error = %v", err)
		}
		if got != "scanned page content" {
			t.Errorf("text = %q, want the ocr result", got)
		}
		if ocr.calls != 1 {
			t.Errorf("ocr called %d times, want 1", ocr.calls)
		}
	})

	t.Run("no ocr service passes empty text through", func(t *testing.T) {
		e := NewExtractor(nil, nil)

		got, err := e.ocrFallback(ctx, item, "/tmp/deck.pdf", "")
		if err != nil {
			t.Fatalf("ocrFallback() error = %v", err)
		}
		if got != "" {
			t.Errorf("text = %q, want empty so the pipeline reports no extractable text", got)
		}
	})

	t.Run("ocr failure surfaces as extraction error", func(t *testing.T) {
		e := NewExtractor(nil, &fakeOCR{err: errors.New("vision model unavailable")})

		_, err := e.ocrFallback(ctx, item, "/tmp/deck.pdf", "")
		if err == nil {
			t.Fatal("ocrFallback() error = nil, want the ocr failure")
		}
		if !strings.Contains(err.Error(), "deck.pdf") {
			t.Errorf("error = %q, want it to name the file", err)
		}
	})
}
