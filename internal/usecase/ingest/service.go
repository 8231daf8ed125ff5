package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/chunker"
	"github.com/kailas-cloud/pdfrag/internal/domain"
	logpkg "github.com/kailas-cloud/pdfrag/internal/logger"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
)

const tracerName = "github.com/kailas-cloud/pdfrag/internal/usecase/ingest"

// Result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

const (
	defaultConcurrency    = 4
	defaultUpsertAttempts = 3
	defaultUpsertBackoff  = 250 * time.Millisecond
)

// Result is the per-document ingestion outcome.
type Result struct {
	Status     string `json:"status"`
	Filename   string `json:"filename"`
	DocumentID string `json:"document_id,omitempty"`
	Chunks     int    `json:"chunks"`
	Message    string `json:"message,omitempty"`
}

// Request describes one document to ingest. Either Data or Path must be set.
// Zero chunking fields fall back to the service pipeline config.
type Request struct {
	OwnerID  string
	Filename string
	Title    string // defaults to Filename
	Data     io.ReaderAt
	Size     int64
	Path     string

	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// Options tunes coordination behavior.
type Options struct {
	Identity          domain.IdentityStrategy
	SerializeReingest bool
	Concurrency       int
	UpsertAttempts    int
	StepTimeout       time.Duration
}

// Service coordinates extract, chunk, delete, embed and upsert for each document.
type Service struct {
	extractor Extractor
	embedder  domain.Embedder
	gateway   Gateway
	publisher Publisher
	pipeline  domain.PipelineConfig
	opts      Options
	locks     *KeyedMutex
	backoff   time.Duration
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New creates an ingestion service.
func New(
	extractor Extractor,
	embedder domain.Embedder,
	gateway Gateway,
	pipeline domain.PipelineConfig,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.Identity == "" {
		opts.Identity = domain.IdentityContentHash
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.UpsertAttempts <= 0 {
		opts.UpsertAttempts = defaultUpsertAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		extractor: extractor,
		embedder:  embedder,
		gateway:   gateway,
		pipeline:  pipeline,
		opts:      opts,
		backoff:   defaultUpsertBackoff,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
	if opts.SerializeReingest {
		s.locks = NewKeyedMutex()
	}
	return s
}

// WithPublisher attaches an event publisher. nil disables events.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// IngestBytes ingests an in-memory document.
func (s *Service) IngestBytes(ctx context.Context, ownerID, filename string, data []byte) (Result, error) {
	return s.Ingest(ctx, Request{
		OwnerID:  ownerID,
		Filename: filename,
		Data:     bytes.NewReader(data),
		Size:     int64(len(data)),
	})
}

// IngestPath ingests a document from disk. The title is the file's base name.
func (s *Service) IngestPath(ctx context.Context, ownerID, path string) (Result, error) {
	return s.Ingest(ctx, Request{OwnerID: ownerID, Filename: filepath.Base(path), Path: path})
}

// Ingest runs the full pipeline for one document. Errors past the delete step are *domain.IngestError.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	title := req.Title
	if title == "" {
		title = req.Filename
	}
	res := Result{Filename: req.Filename}

	ctx, span := s.tracer.Start(ctx, "ingest.Document", trace.WithAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.String("document.title", title),
	))
	defer span.End()

	log := logpkg.With(ctx, s.logger, zap.String("owner_id", req.OwnerID), zap.String("title", title))

	doc, n, err := s.ingest(ctx, req, title, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.DocumentsIngestedTotal.WithLabelValues("error").Inc()
		log.Warn("ingestion failed", zap.Error(err))
		res.Status = StatusError
		res.Message = err.Error()
		return res, err
	}

	res.Status = StatusOK
	res.Chunks = n
	if n == 0 {
		metrics.DocumentsIngestedTotal.WithLabelValues("empty").Inc()
		res.Message = domain.ErrEmptyContent.Error()
		log.Info("document has no extractable text")
		return res, nil
	}

	res.DocumentID = doc.ID
	span.SetAttributes(attribute.String("document.id", doc.ID), attribute.Int("chunks", n))
	metrics.DocumentsIngestedTotal.WithLabelValues("ok").Inc()
	log.Info("document ingested", zap.String("document_id", doc.ID), zap.Int("chunks", n))

	s.publish(ctx, domain.DocumentEvent{
		Kind:       domain.EventIngested,
		OwnerID:    doc.OwnerID,
		Title:      doc.Title,
		DocumentID: doc.ID,
		Chunks:     n,
		At:         time.Now().UTC(),
	})
	return res, nil
}

func (s *Service) ingest(
	ctx context.Context, req Request, title string, log *zap.Logger,
) (domain.Document, int, error) {
	if req.OwnerID == "" {
		return domain.Document{}, 0, fmt.Errorf("%w: owner is required", domain.ErrInvalidFilter)
	}
	size, overlap, err := s.chunking(req)
	if err != nil {
		return domain.Document{}, 0, err
	}

	if s.locks != nil {
		unlock := s.locks.Lock(req.OwnerID + "\x00" + title)
		defer unlock()
	}

	text, err := s.extract(ctx, req)
	if err != nil {
		return domain.Document{}, 0, &domain.IngestError{Stage: domain.StageExtract, Err: err}
	}

	doc := domain.NewDocument(req.OwnerID, title, text, s.opts.Identity)
	if doc.IsBlank() {
		return doc, 0, nil
	}

	started := time.Now()
	splitter := chunker.New(chunker.WithChunkSize(size), chunker.WithOverlap(overlap))
	chunks := splitter.Chunks(doc.Text)
	observe(domain.StageChunk, started)
	if len(chunks) == 0 {
		return doc, 0, nil
	}
	log.Debug("document chunked", zap.Int("chunks", len(chunks)), zap.Int("chars", len(doc.Text)))

	if err := s.deleteOld(ctx, doc); err != nil {
		return doc, 0, &domain.IngestError{Stage: domain.StageDelete, Err: err}
	}

	batchSize := pick(req.BatchSize, s.pipeline.BatchSize)
	if batchSize <= 0 {
		batchSize = len(chunks)
	}

	committed := 0
	for b, start := 0, 0; start < len(chunks); b, start = b+1, start+batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := s.embed(ctx, batch)
		if err != nil {
			return doc, committed, &domain.IngestError{
				Stage: domain.StageEmbed, Batch: b, Committed: committed, Err: err,
			}
		}

		records := make([]domain.VectorRecord, len(batch))
		for i, c := range batch {
			records[i] = domain.NewVectorRecord(doc, c, vectors[i])
		}

		if err := s.upsert(ctx, records, log); err != nil {
			return doc, committed, &domain.IngestError{
				Stage: domain.StageUpsert, Batch: b, Committed: committed, Err: err,
			}
		}
		committed += len(records)
		metrics.ChunksWrittenTotal.Add(float64(len(records)))
	}

	return doc, committed, nil
}

func (s *Service) extract(ctx context.Context, req Request) (string, error) {
	defer observe(domain.StageExtract, time.Now())

	r, size := req.Data, req.Size
	if r == nil {
		if req.Path == "" {
			return "", fmt.Errorf("%w: no document data", domain.ErrExtraction)
		}
		f, err := os.Open(req.Path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", req.Path, err)
		}
		defer func() { _ = f.Close() }()
		st, err := f.Stat()
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", req.Path, err)
		}
		r, size = f, st.Size()
	}

	ctx, cancel := s.stepContext(ctx)
	defer cancel()
	return s.extractor.Extract(ctx, req.Filename, r, size)
}

func (s *Service) deleteOld(ctx context.Context, doc domain.Document) error {
	defer observe(domain.StageDelete, time.Now())

	ctx, cancel := s.stepContext(ctx)
	defer cancel()
	n, err := s.gateway.Delete(ctx, domain.Filter{OwnerID: doc.OwnerID, DocumentTitle: doc.Title})
	if err != nil {
		return fmt.Errorf("delete previous version: %w", err)
	}
	if n > 0 {
		s.logger.Debug("replaced previous version", zap.String("title", doc.Title), zap.Int("records", n))
	}
	return nil
}

func (s *Service) embed(ctx context.Context, batch []domain.Chunk) ([][]float32, error) {
	defer observe(domain.StageEmbed, time.Now())

	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	ctx, cancel := s.stepContext(ctx)
	defer cancel()
	res, err := domain.EmbedBatch(ctx, s.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if err := domain.CheckBatch(res, len(texts), s.pipeline.Dimensions); err != nil {
		return nil, err
	}
	return res.Embeddings, nil
}

// upsert retries the whole batch: ids are deterministic, so a partial write is overwritten.
func (s *Service) upsert(ctx context.Context, records []domain.VectorRecord, log *zap.Logger) error {
	defer observe(domain.StageUpsert, time.Now())

	var err error
	for attempt := 1; attempt <= s.opts.UpsertAttempts; attempt++ {
		if attempt > 1 {
			metrics.UpsertRetriesTotal.Inc()
			log.Warn("retrying upsert batch", zap.Int("attempt", attempt), zap.Error(err))
			if werr := sleep(ctx, s.backoff*time.Duration(attempt-1)); werr != nil {
				return werr
			}
		}

		stepCtx, cancel := s.stepContext(ctx)
		err = s.gateway.Upsert(stepCtx, records)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// DeleteDocument removes every record of (owner, title). An empty title deletes all of the owner's documents.
func (s *Service) DeleteDocument(ctx context.Context, ownerID, title string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.Delete", trace.WithAttributes(
		attribute.String("owner_id", ownerID),
		attribute.String("document.title", title),
	))
	defer span.End()

	f := domain.Filter{OwnerID: ownerID, DocumentTitle: title}
	if err := f.ValidateForDelete(); err != nil {
		return 0, err
	}

	if s.locks != nil && title != "" {
		unlock := s.locks.Lock(ownerID + "\x00" + title)
		defer unlock()
	}

	stepCtx, cancel := s.stepContext(ctx)
	defer cancel()
	n, err := s.gateway.Delete(stepCtx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("delete documents: %w", err)
	}

	s.logger.Info("documents deleted",
		zap.String("owner_id", ownerID), zap.String("title", title), zap.Int("records", n))
	if n > 0 {
		s.publish(ctx, domain.DocumentEvent{
			Kind:    domain.EventDeleted,
			OwnerID: ownerID,
			Title:   title,
			Chunks:  n,
			At:      time.Now().UTC(),
		})
	}
	return n, nil
}

// IngestMany ingests documents with bounded parallelism. Results keep the input order.
func (s *Service) IngestMany(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	sem := make(chan struct{}, s.opts.Concurrency)
	var wg sync.WaitGroup

	for i, req := range reqs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for j := i; j < len(reqs); j++ {
				results[j] = Result{Status: StatusError, Filename: reqs[j].Filename, Message: ctx.Err().Error()}
			}
			wg.Wait()
			return results
		}

		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], _ = s.Ingest(ctx, req)
		}(i, req)
	}

	wg.Wait()
	return results
}

func (s *Service) publish(ctx context.Context, ev domain.DocumentEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish document event failed",
			zap.String("kind", string(ev.Kind)), zap.String("title", ev.Title), zap.Error(err))
	}
}

func (s *Service) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.StepTimeout)
}

func observe(stage domain.IngestStage, started time.Time) {
	metrics.IngestStageDuration.WithLabelValues(string(stage)).Observe(time.Since(started).Seconds())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// chunking resolves the effective chunk size and overlap. Overrides are checked here
// because the splitter would otherwise quietly shrink an overlap that reaches the size.
func (s *Service) chunking(req Request) (size, overlap int, err error) {
	if req.ChunkSize < 0 || req.ChunkOverlap < 0 {
		return 0, 0, fmt.Errorf("%w: negative chunk size or overlap", domain.ErrInvalidChunking)
	}
	size = pick(req.ChunkSize, s.pipeline.ChunkSize)
	overlap = pick(req.ChunkOverlap, s.pipeline.ChunkOverlap)
	if overlap >= size {
		return 0, 0, fmt.Errorf("%w: overlap %d must be below chunk size %d", domain.ErrInvalidChunking, overlap, size)
	}
	return size, overlap, nil
}

func pick(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}
