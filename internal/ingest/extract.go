package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Transcriber converts an audio or video file into text. Used only for the
// audio/video source formats; a nil Transcriber makes those formats fail
// with an extraction error instead of crashing.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// OCR recovers text from a PDF with no extractable text layer (scanned
// documents, image-only slide decks). A nil OCR skips the fallback and lets
// the empty extraction surface as an empty-content failure.
type OCR interface {
	ExtractPDFText(ctx context.Context, path string) (string, error)
}

// supportedExtensions maps an extension to its extraction strategy.
var supportedExtensions = map[string]extractKind{
	".txt": extractText,
	".md":  extractText,
	".pdf": extractPDF,
	".mp3": extractTranscribe,
	".m4a": extractTranscribe,
	".wav": extractTranscribe,
	".mp4": extractTranscribe,
	".mov": extractTranscribe,
}

type extractKind int

const (
	extractText extractKind = iota
	extractPDF
	extractTranscribe
)

// SupportedExtensions returns the allowed file extensions, sorted, for error
// messages and API documentation.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extractor turns a source item into plain text according to its file
// extension.
type Extractor struct {
	transcriber Transcriber
	ocr         OCR
}

// NewExtractor creates an Extractor. transcriber and ocr may each be nil
// when the corresponding service is not configured.
func NewExtractor(transcriber Transcriber, ocr OCR) *Extractor {
	return &Extractor{transcriber: transcriber, ocr: ocr}
}

// Extract returns the text content of the item. The format is chosen by the
// filename's extension; unknown extensions fail with ErrUnsupportedFormat
// naming the allowed set.
func (e *Extractor) Extract(ctx context.Context, item Item) (string, error) {
	ext := strings.ToLower(filepath.Ext(item.Filename))
	kind, ok := supportedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q (allowed: %s)",
			ErrUnsupportedFormat, ext, strings.Join(SupportedExtensions(), ", "))
	}

	switch kind {
	case extractText:
		return e.extractPlainText(item)
	case extractPDF:
		return e.extractPDF(ctx, item)
	default:
		return e.transcribe(ctx, item)
	}
}

func (e *Extractor) extractPlainText(item Item) (string, error) {
	if item.Data != nil {
		return string(item.Data), nil
	}
	data, err := os.ReadFile(item.Path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", item.Filename, err)
	}
	return string(data), nil
}

// extractPDF shells out to pdftotext (poppler-utils). There is no suitable
// in-process extractor, and the binary is a standard install on the hosts
// this runs on. A PDF with no text layer falls back to vision OCR.
func (e *Extractor) extractPDF(ctx context.Context, item Item) (string, error) {
	path, cleanup, err := e.materialize(item)
	if err != nil {
		return "", err
	}
	defer cleanup()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "pdftotext", path, "-")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext %s: %w", item.Filename, err)
	}
	return e.ocrFallback(ctx, item, path, out.String())
}

// ocrFallback returns text unchanged when it has content or no OCR service
// is configured; otherwise it runs vision OCR over the PDF's pages.
func (e *Extractor) ocrFallback(ctx context.Context, item Item, path, text string) (string, error) {
	if strings.TrimSpace(text) != "" || e.ocr == nil {
		return text, nil
	}

	recovered, err := e.ocr.ExtractPDFText(ctx, path)
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", item.Filename, err)
	}
	return recovered, nil
}

func (e *Extractor) transcribe(ctx context.Context, item Item) (string, error) {
	if e.transcriber == nil {
		return "", fmt.Errorf("transcribing %s: no transcription service configured", item.Filename)
	}

	path, cleanup, err := e.materialize(item)
	if err != nil {
		return "", err
	}
	defer cleanup()

	text, err := e.transcriber.Transcribe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("transcribing %s: %w", item.Filename, err)
	}
	return text, nil
}

// materialize returns a filesystem path for the item, writing in-memory data
// to a temp file when necessary. The cleanup function removes the temp file
// (a no-op when the item already had a path).
func (e *Extractor) materialize(item Item) (string, func(), error) {
	if item.Path != "" {
		return item.Path, func() {}, nil
	}

	tmp, err := os.CreateTemp("", "kbase-ingest-*"+filepath.Ext(item.Filename))
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file for %s: %w", item.Filename, err)
	}
	if _, err := tmp.Write(item.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("writing temp file for %s: %w", item.Filename, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("closing temp file for %s: %w", item.Filename, err)
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}
