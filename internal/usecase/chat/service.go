package chat

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/usecase/retrieve"
)

// Source is the provenance of one passage used for an answer.
type Source struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
	Chunk int     `json:"chunk"`
}

// Answer is a generated reply with the passages it was grounded on.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Service answers questions over ingested documents.
type Service struct {
	retriever Retriever
	generator Generator
	logger    *zap.Logger
}

// New creates a chat service.
func New(retriever Retriever, generator Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: retriever, generator: generator, logger: logger}
}

// Ask retrieves passages for question and generates an answer from them.
// When nothing clears the score threshold the generator still runs, with zero passages.
func (s *Service) Ask(ctx context.Context, question, ownerID string) (Answer, error) {
	ctx, span := otel.Tracer("github.com/kailas-cloud/pdfrag/internal/usecase/chat").
		Start(ctx, "chat.Ask")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	passages, err := s.retriever.Retrieve(ctx, retrieve.Request{Question: question, OwnerID: ownerID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	text, err := s.generator.Generate(ctx, question, passages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, fmt.Errorf("generate: %w", err)
	}

	s.logger.Debug("question answered", zap.String("owner_id", ownerID), zap.Int("sources", len(passages)))
	return Answer{Answer: text, Sources: sources(passages)}, nil
}

func sources(passages []domain.Passage) []Source {
	out := make([]Source, len(passages))
	for i, p := range passages {
		out[i] = Source{Title: p.Title, Score: p.Score, Chunk: p.ChunkNumber}
	}
	return out
}
