package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const anthropicMaxTokens = 4000

// AnthropicClient provides completions through the Anthropic Messages
// API. Anthropic has no embedding endpoint, so Embed fails; pair this
// client with an OpenAI-compatible one for indexing.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicClient creates an Anthropic messages client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("llm"),
	}, nil
}

// Complete generates a completion via the Messages API.
func (c *AnthropicClient) Complete(ctx context.Context, systemMessage, prompt string) (string, error) {
	c.logger.Debug("completion request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    systemMessage,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		c.logger.Error("completion request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			c.logger.Info("completion request finished",
				zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// Embed is unsupported on the Anthropic provider.
func (c *AnthropicClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, fmt.Errorf("anthropic provider does not support embeddings")
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}
