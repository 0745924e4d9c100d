package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/askdb-inc/askdb-engine/pkg/config"
)

// NewClient creates the provider selected by configuration. The
// provider is an explicit tag, never inferred from the endpoint.
func NewClient(cfg *config.Config, logger *zap.Logger) (Client, error) {
	clientCfg := &Config{
		Endpoint:       cfg.LLM.Endpoint,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.Embedding.Model,
		APIKey:         cfg.LLM.APIKey,
		Temperature:    cfg.LLM.Temperature,
	}

	switch cfg.LLM.Provider {
	case "openai":
		return NewOpenAIClient(clientCfg, logger)
	case "anthropic":
		return NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// NewEmbeddingClient creates the client used for indexing. Embeddings
// always go through an OpenAI-compatible endpoint; when the completion
// provider is Anthropic, this is the sidecar client that handles Embed.
func NewEmbeddingClient(cfg *config.Config, logger *zap.Logger) (Client, error) {
	return NewOpenAIClient(&Config{
		Endpoint:       cfg.LLM.Endpoint,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.Embedding.Model,
		APIKey:         cfg.LLM.APIKey,
	}, logger)
}
