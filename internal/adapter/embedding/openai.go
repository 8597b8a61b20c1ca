package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"academybot/config"
)

// OpenAIEmbedder generates embeddings through any OpenAI-compatible
// embeddings endpoint (OpenAI, Ollama, Jina, ...).
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	maxChars  int
	batchSize int
	log       *zap.Logger
	truncWarn sync.Once
}

// NewOpenAIEmbedder builds an embedder from config. The API key is read once
// from the environment variable named in cfg.APIKeyEnv.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig, log *zap.Logger) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
	}
	return newOpenAIEmbedder(apiKey, cfg, log), nil
}

func newOpenAIEmbedder(apiKey string, cfg config.EmbeddingConfig, log *zap.Logger) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = modelDimension(cfg.Model)
	}

	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 8192
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: dimension,
		maxChars:  maxChars,
		batchSize: batchSize,
		log:       log,
	}
}

// modelDimension returns the embedding dimension for known models.
func modelDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 1536
	}
}

// Embed generates embeddings for the given texts in batches. Texts longer
// than the configured cap are truncated from the end; the first truncation
// logs a single warning.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > e.maxChars {
			e.truncWarn.Do(func() {
				e.log.Warn("embedding input truncated",
					zap.Int("max_chars", e.maxChars),
					zap.Int("input_chars", len(text)))
			})
			text = truncateChars(text, e.maxChars)
		}
		input[i] = text
	}

	var all [][]float32
	for i := 0; i < len(input); i += e.batchSize {
		end := i + e.batchSize
		if end > len(input) {
			end = len(input)
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: input[i:end],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}

		batch := make([][]float32, end-i)
		for _, d := range resp.Data {
			if d.Index < len(batch) {
				batch[d.Index] = d.Embedding
			}
		}
		for j, v := range batch {
			if len(v) != e.dimension {
				return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i+j, len(v), e.dimension)
			}
		}
		all = append(all, batch...)
	}

	return all, nil
}

// truncateChars cuts s to at most n bytes on a rune boundary.
func truncateChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// Dimension returns the embedding vector dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
