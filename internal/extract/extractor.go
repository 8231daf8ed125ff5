// Package extract turns PDF bytes into page-ordered plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// pageSource abstracts a parsed document so page-level failures can be exercised in tests.
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
}

// Extractor reads text out of PDF documents. A page that fails to decode contributes
// an empty string; only an unparseable container fails the whole document.
type Extractor struct {
	logger *zap.Logger
	open   func(r io.ReaderAt, size int64) (pageSource, error)
}

// New creates an extractor backed by github.com/ledongthuc/pdf.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger, open: openPDF}
}

// ExtractFile reads and extracts the document at path. The base name is used as the filename in errors.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return e.ExtractBytes(ctx, filepath.Base(path), data)
}

// ExtractBytes extracts text from an in-memory document.
func (e *Extractor) ExtractBytes(ctx context.Context, filename string, data []byte) (string, error) {
	return e.Extract(ctx, filename, bytes.NewReader(data), int64(len(data)))
}

// Extract returns per-page text joined by newlines in page order.
func (e *Extractor) Extract(ctx context.Context, filename string, r io.ReaderAt, size int64) (string, error) {
	src, err := e.open(r, size)
	if err != nil {
		return "", &domain.ExtractionError{Filename: filename, Err: err}
	}

	n := src.NumPage()
	pages := make([]string, n)
	failed := 0
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("extract %s: %w", filename, err)
		}
		text, err := src.PageText(i + 1)
		if err != nil {
			failed++
			e.logger.Warn("page extraction failed, skipping",
				zap.String("filename", filename),
				zap.Int("page", i+1),
				zap.Error(err),
			)
			continue
		}
		pages[i] = text
	}

	if failed > 0 {
		e.logger.Info("extracted with skipped pages",
			zap.String("filename", filename),
			zap.Int("pages", n),
			zap.Int("failed", failed),
		)
	}
	return strings.Join(pages, "\n"), nil
}

type pdfSource struct {
	r *pdf.Reader
}

func openPDF(r io.ReaderAt, size int64) (src pageSource, err error) {
	// The parser panics on some malformed trailers instead of returning an error.
	defer func() {
		if rec := recover(); rec != nil {
			src, err = nil, fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	return &pdfSource{r: reader}, nil
}

func (s *pdfSource) NumPage() int { return s.r.NumPage() }

func (s *pdfSource) PageText(num int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("page %d: %v", num, rec)
		}
	}()

	p := s.r.Page(num)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", num)
	}
	return p.GetPlainText(nil)
}
