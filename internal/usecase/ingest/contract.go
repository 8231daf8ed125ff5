package ingest

import (
	"context"
	"io"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// Extractor turns a document byte stream into plain text.
type Extractor interface {
	Extract(ctx context.Context, filename string, r io.ReaderAt, size int64) (string, error)
}

// Gateway is the write side of the vector store.
type Gateway interface {
	Upsert(ctx context.Context, records []domain.VectorRecord) error
	Delete(ctx context.Context, f domain.Filter) (int, error)
}

// Publisher announces document changes. Failures never fail the ingestion.
type Publisher interface {
	Publish(ctx context.Context, ev domain.DocumentEvent) error
}
