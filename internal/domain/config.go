package domain

// PipelineConfig holds the per-request ingestion and retrieval parameters.
// Every field is defaulted by DefaultPipelineConfig and overridable from config or per call.
type PipelineConfig struct {
	EmbeddingModel string
	Dimensions     int
	ChunkSize      int
	ChunkOverlap   int
	BatchSize      int
	TopK           int
	MinScore       float64
}

// DefaultPipelineConfig returns defaults tuned for text-embedding-3-small.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		EmbeddingModel: "text-embedding-3-small",
		Dimensions:     1536,
		ChunkSize:      800,
		ChunkOverlap:   200,
		BatchSize:      100,
		TopK:           5,
		MinScore:       0.3,
	}
}

// ModelDimensions returns the output dimension of well-known OpenAI embedding models, 0 if unknown.
func ModelDimensions(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	default:
		return 0
	}
}
