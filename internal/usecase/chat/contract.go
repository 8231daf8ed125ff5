package chat

import (
	"context"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/usecase/retrieve"
)

// Retriever finds passages relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieve.Request) ([]domain.Passage, error)
}

// Generator writes an answer grounded in the given passages.
type Generator interface {
	Generate(ctx context.Context, question string, passages []domain.Passage) (string, error)
}
