package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// GeneratorConfig holds the chat completion settings.
type GeneratorConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float32
	MaxTokens      int
	SystemPrompt   string
	FallbackAnswer string
	Timeout        time.Duration
	Logger         *zap.Logger
}

// Generator answers a question from retrieved passages via chat completion.
type Generator struct {
	client *openai.Client
	cfg    GeneratorConfig
	logger *zap.Logger
}

// NewGenerator creates an OpenAI-compatible answer generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	return &Generator{
		client: newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		cfg:    *cfg,
		logger: nopIfNil(cfg.Logger),
	}
}

// Generate grounds the answer in passages. With no passages it returns the fallback answer
// without calling the API.
func (g *Generator) Generate(ctx context.Context, question string, passages []domain.Passage) (string, error) {
	if len(passages) == 0 {
		return g.cfg.FallbackAnswer, nil
	}

	req := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(question, passages)},
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		g.logger.Warn("Chat completion failed",
			zap.String("model", g.cfg.Model), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return "", wrapAPIError("chat", err, domain.ErrGenerationFailed)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion: %w", domain.ErrGenerationFailed)
	}

	g.logger.Debug("Chat completion done",
		zap.String("model", g.cfg.Model),
		zap.Int("passages", len(passages)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt renders numbered passages with provenance followed by the question.
func BuildPrompt(question string, passages []domain.Passage) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s (chunk %d)\n%s\n\n", i+1, p.Title, p.ChunkNumber, p.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
