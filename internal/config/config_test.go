package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 8080},
		Store: StoreConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingValkeyAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Addrs = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing valkey addrs")
	}
	if !strings.Contains(err.Error(), "store.addrs") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr bool
	}{
		{"redis", StoreConfig{Driver: "redis", Addrs: []string{"r:6379"}}, false},
		{"qdrant", StoreConfig{Driver: "qdrant", QdrantAddr: "localhost:6334"}, false},
		{"qdrant without addr", StoreConfig{Driver: "qdrant"}, true},
		{"sqlite", StoreConfig{Driver: "sqlite"}, false},
		{"unknown", StoreConfig{Driver: "pinecone"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Store = tt.store
			cfg.Store.applyDefaults()

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_OverlapMustBeBelowSize(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking = ChunkingConfig{Size: 100, Overlap: 100}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap >= size")
	}
}

func TestValidate_IdentityStrategy(t *testing.T) {
	for _, id := range []string{"content_hash", "random"} {
		cfg := validConfig()
		cfg.Ingest.Identity = id
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error for %q: %v", id, err)
		}
	}

	cfg := validConfig()
	cfg.Ingest.Identity = "uuid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown identity strategy")
	}
}

func TestValidate_MinScoreRange(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.MinScore = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for min_score > 1")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Store.Driver != "valkey" {
		t.Errorf("expected driver valkey, got %q", cfg.Store.Driver)
	}
	if cfg.Store.IndexName != "rag-demo" {
		t.Errorf("expected IndexName=rag-demo, got %q", cfg.Store.IndexName)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" || cfg.Embedding.Dimensions != 1536 {
		t.Errorf("unexpected embedding defaults: %s/%d", cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.BatchSize != 100 {
		t.Errorf("expected BatchSize=100, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Generation.Model != "gpt-4o" {
		t.Errorf("expected gpt-4o, got %q", cfg.Generation.Model)
	}
	if cfg.Chunking.Size != 800 || cfg.Chunking.Overlap != 200 {
		t.Errorf("expected 800/200, got %d/%d", cfg.Chunking.Size, cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.MinScore != 0.3 {
		t.Errorf("unexpected retrieval defaults: %d/%v", cfg.Retrieval.TopK, cfg.Retrieval.MinScore)
	}
	if cfg.Ingest.Identity != "content_hash" || cfg.Ingest.DefaultOwner != "local" {
		t.Errorf("unexpected ingest defaults: %+v", cfg.Ingest)
	}
	if cfg.Ingest.SerializeReingest == nil || !*cfg.Ingest.SerializeReingest {
		t.Error("expected serialize_reingest to default to true")
	}
}

func TestApplyDefaults_LargeModelDimensions(t *testing.T) {
	cfg := Config{Embedding: EmbeddingConfig{Model: "text-embedding-3-large"}}
	cfg.ApplyDefaults()

	if cfg.Embedding.Dimensions != 3072 {
		t.Errorf("expected 3072, got %d", cfg.Embedding.Dimensions)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	off := false
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 5},
		Store:    StoreConfig{Driver: "sqlite", KeyPrefix: "custom:"},
		Chunking: ChunkingConfig{Size: 500, Overlap: 0},
		Ingest:   IngestConfig{SerializeReingest: &off, Identity: "random"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 5 {
		t.Errorf("expected ReadTimeoutSec=5, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Store.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Store.KeyPrefix)
	}
	if cfg.Chunking.Overlap != 0 {
		t.Errorf("explicit size keeps explicit zero overlap, got %d", cfg.Chunking.Overlap)
	}
	if *cfg.Ingest.SerializeReingest {
		t.Error("explicit false must be kept")
	}
	if cfg.Ingest.Identity != "random" {
		t.Errorf("expected random identity, got %q", cfg.Ingest.Identity)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("PDFRAG_TEST_KEY", "sk-test")
	data := []byte(`
http:
  port: 8080
store:
  driver: sqlite
  index_name: ${PDFRAG_TEST_INDEX:-docs}
embedding:
  api_key: ${PDFRAG_TEST_KEY}
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("expected api key from env, got %q", cfg.Embedding.APIKey)
	}
	if cfg.Store.IndexName != "docs" {
		t.Errorf("expected default from expression, got %q", cfg.Store.IndexName)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Parse([]byte("http:\n  port: 0\n")); err == nil {
		t.Error("expected validation error")
	}
}
