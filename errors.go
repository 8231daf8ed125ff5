package pdfrag

import "github.com/kailas-cloud/pdfrag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrExtraction             = domain.ErrExtraction
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrInvalidFilter          = domain.ErrInvalidFilter
	ErrRateLimited            = domain.ErrRateLimited
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrGenerationFailed       = domain.ErrGenerationFailed
	ErrGateway                = domain.ErrGateway
)
