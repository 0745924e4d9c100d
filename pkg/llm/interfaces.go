// Package llm provides clients for the external text completion and
// embedding services. The engine treats the model as a black box
// invoked through this fixed contract.
package llm

import "context"

// Client is the fixed contract the engine holds against a model
// provider. Use this interface for dependency injection to enable
// mocking in tests.
type Client interface {
	// Complete generates a text completion for the prompt.
	Complete(ctx context.Context, systemMessage, prompt string) (string, error)

	// Embed generates one embedding vector per input text.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)

	// Model returns the configured model name.
	Model() string
}

// Ensure implementations satisfy Client at compile time.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)
