// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/config"
	"github.com/kailas-cloud/pdfrag/internal/db"
	dbRedis "github.com/kailas-cloud/pdfrag/internal/db/redis"
	"github.com/kailas-cloud/pdfrag/internal/domain"
	"github.com/kailas-cloud/pdfrag/internal/events"
	"github.com/kailas-cloud/pdfrag/internal/extract"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
	"github.com/kailas-cloud/pdfrag/internal/repository/embcache"
	qdrantrepo "github.com/kailas-cloud/pdfrag/internal/repository/qdrant"
	sqliterepo "github.com/kailas-cloud/pdfrag/internal/repository/sqlite"
	usagerepo "github.com/kailas-cloud/pdfrag/internal/repository/usage"
	vectorrepo "github.com/kailas-cloud/pdfrag/internal/repository/vector"
	openaiTransport "github.com/kailas-cloud/pdfrag/internal/transport/openai"
	chatuc "github.com/kailas-cloud/pdfrag/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/pdfrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/pdfrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/pdfrag/internal/usecase/ingest"
	retrieveuc "github.com/kailas-cloud/pdfrag/internal/usecase/retrieve"
	usageuc "github.com/kailas-cloud/pdfrag/internal/usecase/usage"
)

const (
	providerName  = "openai"
	embedCacheTTL = 30 * 24 * time.Hour
)

// Gateway is the full vector store surface the app wires.
type Gateway interface {
	Ping(ctx context.Context) error
	EnsureIndex(ctx context.Context, dim int) error
	Upsert(ctx context.Context, records []domain.VectorRecord) error
	Delete(ctx context.Context, f domain.Filter) (int, error)
	Query(ctx context.Context, vector []float32, topK int, minScore float64, f domain.Filter) ([]domain.Match, error)
}

// App holds every wired service.
type App struct {
	Config   config.Config
	Gateway  Gateway
	Ingest   *ingestuc.Service
	Retrieve *retrieveuc.Service
	Chat     *chatuc.Service
	Health   *healthuc.Service
	Usage    *usageuc.Service
	Events   *events.Publisher

	closers []func() error
}

// New connects to the configured store, ensures the index and assembles the services.
// Metrics must be registered by the caller.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg}

	kv, err := a.openGateway(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if err := a.Gateway.EnsureIndex(ctx, cfg.Embedding.Dimensions); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	pipeline := domain.PipelineConfig{
		EmbeddingModel: cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
		ChunkSize:      cfg.Chunking.Size,
		ChunkOverlap:   cfg.Chunking.Overlap,
		BatchSize:      cfg.Embedding.BatchSize,
		TopK:           cfg.Retrieval.TopK,
		MinScore:       cfg.Retrieval.MinScore,
	}

	// Token counters need a key-value store; other drivers report usage as disabled.
	var counter usageuc.Counter
	if kv != nil {
		counter = usagerepo.New(kv, cfg.Store.KeyPrefix)
	}
	a.Usage = usageuc.New(counter, providerName, cfg.Embedding.Model, logger)

	queryEmbedder := buildEmbedder(cfg.Embedding, a.Usage, logger)
	var docEmbedder domain.Embedder = queryEmbedder
	if cfg.Embedding.Cache && kv != nil {
		docEmbedder = embcache.New(queryEmbedder, kv, embcache.Options{
			KeyPrefix: cfg.Store.KeyPrefix,
			Model:     cfg.Embedding.Model,
			TTL:       embedCacheTTL,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	identity, err := domain.ParseIdentityStrategy(cfg.Ingest.Identity)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	stepTimeout := time.Duration(cfg.Ingest.StepTimeoutSec) * time.Second
	a.Ingest = ingestuc.New(
		extract.New(logger),
		docEmbedder,
		a.Gateway,
		pipeline,
		ingestuc.Options{
			Identity:          identity,
			SerializeReingest: cfg.Ingest.SerializeReingest == nil || *cfg.Ingest.SerializeReingest,
			Concurrency:       cfg.Ingest.Concurrency,
			UpsertAttempts:    cfg.Ingest.UpsertAttempts,
			StepTimeout:       stepTimeout,
		},
		logger,
	)
	a.Retrieve = retrieveuc.New(queryEmbedder, a.Gateway, pipeline, logger).WithTimeout(stepTimeout)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:         cfg.Embedding.APIKey,
		BaseURL:        cfg.Embedding.BaseURL,
		Model:          cfg.Generation.Model,
		Temperature:    cfg.Generation.Temperature,
		MaxTokens:      cfg.Generation.MaxTokens,
		SystemPrompt:   cfg.Generation.SystemPrompt,
		FallbackAnswer: cfg.Generation.FallbackAnswer,
		Timeout:        time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		Logger:         logger,
	})
	a.Chat = chatuc.New(a.Retrieve, generator, logger)

	a.Health = healthuc.New(a.Gateway, newEmbeddingHealthChecker(queryEmbedder))

	if cfg.Events.NATSURL != "" {
		pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			// Events are optional; ingestion keeps working without them.
			logger.Warn("Events disabled", zap.Error(err))
		} else {
			a.Events = pub
			a.closers = append(a.closers, pub.Close)
			a.Ingest.WithPublisher(pub)
			a.Health.WithCheck("events", pub.Ping)
		}
	}

	return a, nil
}

// openGateway returns the Redis-family store when one backs the gateway; the embedding cache
// and the usage counters live in it. Other drivers return a nil store.
func (a *App) openGateway(ctx context.Context) (db.Store, error) {
	cfg := a.Config.Store
	switch cfg.Driver {
	case "valkey", "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
			Timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })

		if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		a.Gateway = vectorrepo.New(store, vectorrepo.Config{
			IndexName: cfg.IndexName,
			KeyPrefix: cfg.KeyPrefix,
			HNSW:      vectorrepo.HNSWConfig{M: cfg.HNSWM, EFConstruct: cfg.HNSWEFConstruct},
		})
		return store, nil

	case "qdrant":
		repo, err := qdrantrepo.New(cfg.QdrantAddr, cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("create qdrant client: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		a.Gateway = repo
		return nil, nil

	case "sqlite":
		repo, err := sqliterepo.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		a.Gateway = repo
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// buildEmbedder assembles the decorator chain: OpenAI -> RateLimited -> Retrying -> Instrumented.
func buildEmbedder(cfg config.EmbeddingConfig, usage embeddinguc.TokenRecorder, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   providerName,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var embedder domain.Embedder = embeddinguc.NewRateLimited(base, cfg.RPS, cfg.Burst)

	retry := embeddinguc.DefaultRetry
	retry.MaxAttempts = cfg.RetryAttempts
	embedder = embeddinguc.NewRetrying(embedder, retry, cfg.Model, logger)

	return embeddinguc.NewInstrumentedEmbedder(embedder, providerName, cfg.Model, logger).WithUsage(usage)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
