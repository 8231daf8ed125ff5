package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
	logpkg "github.com/kailas-cloud/pdfrag/internal/logger"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

const tracerName = "github.com/kailas-cloud/pdfrag/internal/usecase/retrieve"

// Request is a single retrieval. Zero TopK and nil MinScore fall back to the service defaults.
type Request struct {
	Question string
	OwnerID  string
	TopK     int
	MinScore *float64
}

// Service embeds a question and returns the best matching passages.
type Service struct {
	embedder domain.Embedder
	gateway  Gateway
	topK     int
	minScore float64
	dim      int
	timeout  time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New creates a retrieval service. TopK, MinScore and Dimensions are taken from pipeline.
func New(embedder domain.Embedder, gateway Gateway, pipeline domain.PipelineConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := pipeline.TopK
	if topK <= 0 {
		topK = domain.DefaultPipelineConfig().TopK
	}
	return &Service{
		embedder: embedder,
		gateway:  gateway,
		topK:     topK,
		minScore: pipeline.MinScore,
		dim:      pipeline.Dimensions,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// WithTimeout bounds the embed and query calls individually.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Retrieve returns up to TopK passages scoring at least MinScore, best first.
func (s *Service) Retrieve(ctx context.Context, req Request) ([]domain.Passage, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidQuery)
	}

	topK := s.topK
	if req.TopK > 0 {
		topK = req.TopK
	}
	minScore := s.minScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	ctx, span := s.tracer.Start(ctx, "retrieve.Query", trace.WithAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.Int("top_k", topK),
		attribute.Float64("min_score", minScore),
	))
	defer span.End()

	started := time.Now()
	passages, err := s.retrieve(ctx, question, req.OwnerID, topK, minScore)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.RetrievalDuration.Observe(time.Since(started).Seconds())
	metrics.RetrievalResults.Observe(float64(len(passages)))
	span.SetAttributes(attribute.Int("results", len(passages)))

	logpkg.With(ctx, s.logger).Debug("retrieved passages",
		zap.String("owner_id", req.OwnerID),
		zap.Int("results", len(passages)),
		zap.Duration("took", time.Since(started)),
	)
	return passages, nil
}

func (s *Service) retrieve(
	ctx context.Context, question, ownerID string, topK int, minScore float64,
) ([]domain.Passage, error) {
	vector, err := s.embed(ctx, question)
	if err != nil {
		return nil, err
	}

	qctx, cancel := s.stepContext(ctx)
	defer cancel()
	matches, err := s.gateway.Query(qctx, vector, topK, minScore, domain.Filter{OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	// Backends differ in how strictly they honor threshold and ordering.
	kept := make([]domain.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score >= minScore && (ownerID == "" || m.Metadata.OwnerID == ownerID) {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > topK {
		kept = kept[:topK]
	}

	passages := make([]domain.Passage, len(kept))
	for i, m := range kept {
		passages[i] = domain.PassageFromMatch(m)
	}
	return passages, nil
}

func (s *Service) embed(ctx context.Context, question string) ([]float32, error) {
	ctx, cancel := s.stepContext(ctx)
	defer cancel()

	res, err := domain.EmbedBatch(ctx, s.embedder, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if err := domain.CheckBatch(res, 1, s.dim); err != nil {
		return nil, err
	}
	return res.Embeddings[0], nil
}

func (s *Service) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
