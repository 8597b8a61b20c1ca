package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"academybot/config"
	"academybot/internal/port"
)

// New builds the configured embedder.
func New(cfg config.EmbeddingConfig, log *zap.Logger) (port.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg, log)
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434/v1"
		}
		// Local endpoints accept any key.
		return newOpenAIEmbedder("ollama", cfg, log), nil
	case "mock":
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 768
		}
		return NewMockEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
