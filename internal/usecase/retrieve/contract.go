package retrieve

import (
	"context"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// Gateway is the read side of the vector store.
type Gateway interface {
	Query(ctx context.Context, vector []float32, topK int, minScore float64, f domain.Filter) ([]domain.Match, error)
}
