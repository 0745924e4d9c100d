package llm

import (
	"context"
)

// MockClient is a configurable mock for testing. Set the function
// fields to control behavior.
type MockClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns "" and nil error.
	CompleteFunc func(ctx context.Context, systemMessage, prompt string) (string, error)

	// EmbedFunc is called when Embed is invoked.
	// If nil, returns one zero-value vector of EmbedDim per input.
	EmbedFunc func(ctx context.Context, inputs []string) ([][]float32, error)

	// EmbedDim sizes the default vectors returned when EmbedFunc is
	// nil. Defaults to 4.
	EmbedDim int

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification.
	CompleteCalls int
	EmbedCalls    int
}

// NewMockClient creates a mock with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ModelName: "mock-model",
		EmbedDim:  4,
	}
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, systemMessage, prompt string) (string, error) {
	m.CompleteCalls++
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemMessage, prompt)
	}
	return "", nil
}

// Embed implements Client.
func (m *MockClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, inputs)
	}
	dim := m.EmbedDim
	if dim <= 0 {
		dim = 4
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = make([]float32, dim)
	}
	return out, nil
}

// Model implements Client.
func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}
