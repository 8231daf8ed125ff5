package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a query against a missing index or collection.
	ErrNotFound = errors.New("not found")
	// ErrExtraction signals a document that cannot be parsed as a PDF.
	ErrExtraction = errors.New("extraction failed")
	// ErrEmptyContent marks a document without retrievable text. It is reported, never returned as a failure.
	ErrEmptyContent = errors.New("empty content")
	// ErrUnsupportedFormat signals an upload that is not a PDF.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrInvalidQuery signals an empty or malformed question.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrProviderRejected marks a 4xx rejection (bad input, auth). Retrying cannot help.
	ErrProviderRejected = errors.New("provider rejected request")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrGenerationFailed signals an answer generation failure.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrGateway signals an unavailable or failing vector store.
	ErrGateway = errors.New("vector store error")
	// ErrInvalidFilter signals a malformed metadata filter.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidChunking signals a chunk size or overlap that cannot produce bounded chunks.
	ErrInvalidChunking = errors.New("invalid chunking")
)

// ExtractionError wraps ErrExtraction with the offending file name.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrExtraction.Error(), e.Filename)
	}
	return fmt.Sprintf("%s: %s: %v", ErrExtraction.Error(), e.Filename, e.Err)
}

// Is reports ErrExtraction so callers can match the whole family with errors.Is.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

func (e *ExtractionError) Unwrap() error { return e.Err }

// IngestStage names the pipeline step an ingestion failed in.
type IngestStage string

// Ingestion stages in execution order.
const (
	StageExtract IngestStage = "extract"
	StageChunk   IngestStage = "chunk"
	StageDelete  IngestStage = "delete"
	StageEmbed   IngestStage = "embed"
	StageUpsert  IngestStage = "upsert"
)

// IngestError carries enough context for a caller to decide whether to retry the whole document.
// Batch is zero-based; Committed counts chunks already visible in the store.
type IngestError struct {
	Stage     IngestStage
	Batch     int
	Committed int
	Err       error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s failed at batch %d (%d chunks committed): %v",
		e.Stage, e.Batch, e.Committed, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }
