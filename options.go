package pdfrag

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg        config.Config
	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores vectors in a Valkey instance with the search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.Driver = "valkey"
		c.cfg.Store.Addrs = []string{addr}
		c.cfg.Store.Password = password
	})
}

// WithRedis stores vectors in Redis 8+.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.Driver = "redis"
		c.cfg.Store.Addrs = []string{addr}
		c.cfg.Store.Password = password
	})
}

// WithQdrant stores vectors in Qdrant, addr is the gRPC endpoint (host:6334).
func WithQdrant(addr string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.Driver = "qdrant"
		c.cfg.Store.QdrantAddr = addr
	})
}

// WithSQLite stores vectors in a local SQLite file. Search is brute force.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.Driver = "sqlite"
		c.cfg.Store.SQLitePath = path
	})
}

// WithIndex sets the index (collection) name. Default: rag-demo.
func WithIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Store.IndexName = name
	})
}

// WithOpenAI sets the API key used for both embeddings and answer generation.
func WithOpenAI(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.APIKey = apiKey
	})
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.BaseURL = url
	})
}

// WithEmbeddingModel selects the embedding model. dim 0 uses the model's native size.
func WithEmbeddingModel(model string, dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Embedding.Model = model
		c.cfg.Embedding.Dimensions = dim
	})
}

// WithGenerationModel selects the chat model used by Ask. Default: gpt-4o.
func WithGenerationModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Generation.Model = model
	})
}

// WithChunking sets chunk size and overlap in characters. Defaults: 800 and 200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Chunking.Size = size
		c.cfg.Chunking.Overlap = overlap
	})
}

// WithRetrieval sets how many passages are used and the minimum similarity. Defaults: 5 and 0.3.
func WithRetrieval(topK int, minScore float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Retrieval.TopK = topK
		c.cfg.Retrieval.MinScore = minScore
	})
}

// WithRandomDocumentIDs issues a fresh id per ingestion instead of hashing the content.
func WithRandomDocumentIDs() Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Ingest.Identity = "random"
	})
}

// WithEvents publishes ingestion and deletion events to NATS.
func WithEvents(natsURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Events.NATSURL = natsURL
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
