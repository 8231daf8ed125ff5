package chi

import (
	"github.com/kailas-cloud/pdfrag/internal/usecase/chat"
	"github.com/kailas-cloud/pdfrag/internal/usecase/health"
	"github.com/kailas-cloud/pdfrag/internal/usecase/usage"
)

// ErrorResponseCode is a stable machine-readable error code.
type ErrorResponseCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorResponseCodeBadRequest        ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized      ErrorResponseCode = "unauthorized"
	ErrorResponseCodeUnsupportedFormat ErrorResponseCode = "unsupported_format"
	ErrorResponseCodePayloadTooLarge   ErrorResponseCode = "payload_too_large"
	ErrorResponseCodeExtractionFailed  ErrorResponseCode = "extraction_failed"
	ErrorResponseCodeInvalidQuery      ErrorResponseCode = "invalid_query"
	ErrorResponseCodeInvalidFilter     ErrorResponseCode = "invalid_filter"
	ErrorResponseCodeInvalidChunking   ErrorResponseCode = "invalid_chunking"
	ErrorResponseCodeIndexNotFound     ErrorResponseCode = "index_not_found"
	ErrorResponseCodeNotFound          ErrorResponseCode = "not_found"
	ErrorResponseCodeRateLimited       ErrorResponseCode = "rate_limited"
	ErrorResponseCodeEmbeddingError    ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeVectorDimMismatch ErrorResponseCode = "vector_dim_mismatch"
	ErrorResponseCodeGenerationFailed  ErrorResponseCode = "generation_failed"
	ErrorResponseCodeStoreUnavailable  ErrorResponseCode = "vector_store_unavailable"
	ErrorResponseCodeInternalError     ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// IngestResponse is the reply to POST /v1/ingest.
type IngestResponse struct {
	Status     string `json:"status"`
	Filename   string `json:"filename"`
	DocumentID string `json:"document_id,omitempty"`
	Chunks     int    `json:"chunks"`
	Message    string `json:"message,omitempty"`
}

// BatchIngestItem is one file's outcome. Chunks is set on success, Detail on failure.
type BatchIngestItem struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Chunks   *int   `json:"chunks,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// BatchIngestResponse is the reply to POST /v1/ingest/batch.
type BatchIngestResponse struct {
	Results   []BatchIngestItem `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Query string  `json:"query"`
	Owner *string `json:"owner,omitempty"`
}

// ChatResponse is the reply to POST /v1/chat.
type ChatResponse = chat.Answer

// DeleteDocumentsParams are the query parameters of DELETE /v1/documents.
type DeleteDocumentsParams struct {
	Owner *string `form:"owner,omitempty" json:"owner,omitempty"`
	Title *string `form:"title,omitempty" json:"title,omitempty"`
}

// DeleteDocumentsResponse reports how many records were removed.
type DeleteDocumentsResponse struct {
	Deleted int `json:"deleted"`
}

// HealthResponse is the reply to GET /health.
type HealthResponse = health.Report

// UsageResponse is the reply to GET /v1/usage.
type UsageResponse = usage.Report
