// Package ocr recovers text from image-only PDFs by rasterizing pages and
// running them through a vision model.
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/atomicwork-labs/kbase/internal/log"
)

const (
	// maxPages bounds how many pages are OCRed per document; vision calls
	// are the dominant cost of the fallback.
	maxPages = 3

	// renderDPI is the pdftoppm rasterization density.
	renderDPI = 200

	pageBreak = "\n\n--- Page Break ---\n\n"
)

const ocrPrompt = "Extract all text from this image. Return only the extracted text, " +
	"nothing else. Preserve formatting, paragraphs, and structure as much as possible."

// Service performs vision OCR over PDF pages via a multimodal model.
type Service struct {
	g      *genkit.Genkit
	model  string
	logger log.Logger
}

// New creates an OCR Service using the given multimodal model.
func New(g *genkit.Genkit, model string, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{g: g, model: model, logger: logger}
}

// ExtractPDFText rasterizes up to maxPages pages of the PDF and runs each
// through the vision model. A single page's failure skips that page rather
// than aborting the document; an error is returned only when no page yields
// any text.
func (s *Service) ExtractPDFText(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "kbase-ocr-*")
	if err != nil {
		return "", fmt.Errorf("creating ocr work dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var pages []string
	for page := 1; page <= maxPages; page++ {
		image, err := s.renderPage(ctx, path, tmpDir, page)
		if err != nil {
			// Rendering fails past the document's last page; stop there.
			s.logger.Debug("page rendering stopped", "page", page, "error", err)
			break
		}

		text, err := s.recognize(ctx, image)
		if err != nil {
			s.logger.Warn("vision ocr failed for page", "page", page, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("no text recognized in the first %d pages of %s", maxPages, filepath.Base(path))
	}

	s.logger.Info("ocr recovered text from image-only pdf",
		"path", filepath.Base(path),
		"pages", len(pages))
	return strings.Join(pages, pageBreak), nil
}

// renderPage rasterizes one page to PNG via pdftoppm (poppler-utils, same
// family as the pdftotext the extractor already requires).
func (s *Service) renderPage(ctx context.Context, pdfPath, dir string, page int) ([]byte, error) {
	prefix := filepath.Join(dir, "page-"+strconv.Itoa(page))
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png",
		"-r", strconv.Itoa(renderDPI),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile", pdfPath, prefix)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w", page, err)
	}

	image, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("reading rendered page %d: %w", page, err)
	}
	return image, nil
}

// recognize sends one page image to the vision model and returns its text.
func (s *Service) recognize(ctx context.Context, image []byte) (string, error) {
	part := ai.NewMediaPart("image/png",
		"data:image/png;base64,"+base64.StdEncoding.EncodeToString(image))

	response, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.model),
		ai.WithMessages(ai.NewUserMessage(part, ai.NewTextPart(ocrPrompt))),
	)
	if err != nil {
		return "", err
	}
	return response.Text(), nil
}
