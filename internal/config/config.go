package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the pdfrag configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Events     EventsConfig     `yaml:"events"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, qdrant, sqlite (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	IndexName        string   `yaml:"index_name"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
	QdrantAddr       string   `yaml:"qdrant_addr"`
	SQLitePath       string   `yaml:"sqlite_path"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	TimeoutSec       int      `yaml:"timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Dimensions    int     `yaml:"dimensions"`
	BatchSize     int     `yaml:"batch_size"`
	RPS           float64 `yaml:"rps"` // 0 = unlimited
	Burst         int     `yaml:"burst"`
	TimeoutSec    int     `yaml:"timeout_sec"`
	RetryAttempts int     `yaml:"retry_attempts"` // 1 = no retry
	Cache         bool    `yaml:"cache"`
}

// GenerationConfig holds answer generation settings.
type GenerationConfig struct {
	Model          string  `yaml:"model"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	SystemPrompt   string  `yaml:"system_prompt"`
	FallbackAnswer string  `yaml:"fallback_answer"`
	TimeoutSec     int     `yaml:"timeout_sec"`
}

// ChunkingConfig holds splitter settings, in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"` // 0 = default 0.3
}

// IngestConfig holds ingestion coordinator settings.
type IngestConfig struct {
	Identity          string `yaml:"identity"` // content_hash, random (default: content_hash)
	DefaultOwner      string `yaml:"default_owner"`
	SerializeReingest *bool  `yaml:"serialize_reingest"`
	Concurrency       int    `yaml:"concurrency"`
	UpsertAttempts    int    `yaml:"upsert_attempts"`
	StepTimeoutSec    int    `yaml:"step_timeout_sec"`
	DataDir           string `yaml:"data_dir"`
}

// EventsConfig holds the optional NATS publisher settings. Empty URL disables events.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultSystemPrompt grounds answers in retrieved context.
const DefaultSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say that you don't know."

// DefaultFallbackAnswer is returned when retrieval finds nothing above the score threshold.
const DefaultFallbackAnswer = "I couldn't find anything relevant in your documents."

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML with ${VAR} substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	c.HTTP.applyDefaults()
	c.Store.applyDefaults()
	c.Embedding.applyDefaults()
	c.Generation.applyDefaults()

	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 800
		if c.Chunking.Overlap == 0 {
			c.Chunking.Overlap = 200
		}
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.MinScore == 0 {
		c.Retrieval.MinScore = 0.3
	}

	if c.Ingest.Identity == "" {
		c.Ingest.Identity = "content_hash"
	}
	if c.Ingest.DefaultOwner == "" {
		c.Ingest.DefaultOwner = "local"
	}
	if c.Ingest.SerializeReingest == nil {
		on := true
		c.Ingest.SerializeReingest = &on
	}
	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = 4
	}
	if c.Ingest.UpsertAttempts <= 0 {
		c.Ingest.UpsertAttempts = 3
	}
	if c.Ingest.StepTimeoutSec <= 0 {
		c.Ingest.StepTimeoutSec = 60
	}
	if c.Ingest.DataDir == "" {
		c.Ingest.DataDir = "data"
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = "pdfrag.documents"
	}
}

func (h *HTTPConfig) applyDefaults() {
	if h.ReadTimeoutSec <= 0 {
		h.ReadTimeoutSec = 30
	}
	if h.WriteTimeoutSec <= 0 {
		h.WriteTimeoutSec = 120
	}
	if h.ShutdownSec <= 0 {
		h.ShutdownSec = 10
	}
	if h.MaxUploadMB <= 0 {
		h.MaxUploadMB = 50
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.Driver == "" {
		s.Driver = "valkey"
	}
	if s.IndexName == "" {
		s.IndexName = "rag-demo"
	}
	if s.KeyPrefix == "" {
		s.KeyPrefix = "pdfrag:"
	}
	if s.HNSWM <= 0 {
		s.HNSWM = 16
	}
	if s.HNSWEFConstruct <= 0 {
		s.HNSWEFConstruct = 200
	}
	if s.SQLitePath == "" {
		s.SQLitePath = "pdfrag.db"
	}
	if s.ReadinessTimeout <= 0 {
		s.ReadinessTimeout = 10
	}
	if s.TimeoutSec <= 0 {
		s.TimeoutSec = 15
	}
}

func (e *EmbeddingConfig) applyDefaults() {
	if e.BaseURL == "" {
		e.BaseURL = "https://api.openai.com/v1"
	}
	if e.Model == "" {
		e.Model = "text-embedding-3-small"
	}
	if e.Dimensions <= 0 {
		switch e.Model {
		case "text-embedding-3-large":
			e.Dimensions = 3072
		default:
			e.Dimensions = 1536
		}
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 100
	}
	if e.Burst <= 0 {
		e.Burst = 1
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 30
	}
	if e.RetryAttempts <= 0 {
		e.RetryAttempts = 3
	}
}

func (g *GenerationConfig) applyDefaults() {
	if g.Model == "" {
		g.Model = "gpt-4o"
	}
	if g.MaxTokens <= 0 {
		g.MaxTokens = 800
	}
	if g.SystemPrompt == "" {
		g.SystemPrompt = DefaultSystemPrompt
	}
	if g.FallbackAnswer == "" {
		g.FallbackAnswer = DefaultFallbackAnswer
	}
	if g.TimeoutSec <= 0 {
		g.TimeoutSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return c.ValidatePipeline()
}

// ValidatePipeline checks everything except the HTTP server settings.
func (c *Config) ValidatePipeline() error {
	switch c.Store.Driver {
	case "valkey", "redis":
		if len(c.Store.Addrs) == 0 {
			return fmt.Errorf("store.addrs is required for driver %q", c.Store.Driver)
		}
	case "qdrant":
		if c.Store.QdrantAddr == "" {
			return fmt.Errorf("store.qdrant_addr is required for driver \"qdrant\"")
		}
	case "sqlite":
	default:
		return fmt.Errorf("store.driver must be one of valkey, redis, qdrant, sqlite, got %q", c.Store.Driver)
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be less than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be within [0, 1], got %v", c.Retrieval.MinScore)
	}
	switch c.Ingest.Identity {
	case "content_hash", "random":
	default:
		return fmt.Errorf("ingest.identity must be \"content_hash\" or \"random\", got %q", c.Ingest.Identity)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
