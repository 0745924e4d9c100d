// Package config loads engine configuration from YAML with environment
// variable overrides. Secrets (API keys, datasource passwords) must
// only come from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the engine.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Loop      LoopConfig      `yaml:"loop"`
	Execution ExecutionConfig `yaml:"execution"`
	Cache     CacheConfig     `yaml:"cache"`
}

// LLMConfig configures the generation model endpoint.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" (any
	// OpenAI-compatible endpoint, including local inference servers)
	// or "anthropic".
	Provider string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint string        `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string        `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string        `yaml:"-" env:"LLM_API_KEY"` // secret, env only
	Timeout  time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`

	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`
}

// EmbeddingConfig configures the embedding model used by the indexer.
type EmbeddingConfig struct {
	Model     string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	Dimension int    `yaml:"dimension" env:"EMBEDDING_DIMENSION" env-default:"1536"`
	// BatchSize bounds how many texts are embedded per API call.
	BatchSize int `yaml:"batch_size" env:"EMBEDDING_BATCH_SIZE" env-default:"64"`
	// MaxConcurrent bounds parallel embedding calls during indexing.
	MaxConcurrent int `yaml:"max_concurrent" env:"EMBEDDING_MAX_CONCURRENT" env-default:"4"`
}

// RetrievalConfig tunes context retrieval.
type RetrievalConfig struct {
	// TopK is the over-fetch size for nearest-neighbor search.
	TopK int `yaml:"top_k" env:"RETRIEVAL_TOP_K" env-default:"50"`
	// MinSimilarity is the floor below which hits are discarded. An
	// empty result set below this floor is reported as insufficient
	// context, not an error.
	MinSimilarity float64 `yaml:"min_similarity" env:"RETRIEVAL_MIN_SIMILARITY" env-default:"0.25"`
	// TokenBudget caps the packed context bundle size.
	TokenBudget int `yaml:"token_budget" env:"RETRIEVAL_TOKEN_BUDGET" env-default:"2000"`
}

// LoopConfig bounds the generation-validation loop.
type LoopConfig struct {
	// SemanticRetries is the shared budget for validation and
	// execution correction attempts.
	SemanticRetries int `yaml:"semantic_retries" env:"LOOP_SEMANTIC_RETRIES" env-default:"3"`
	// TransportRetries is the smaller per-call budget for model
	// transport failures.
	TransportRetries int `yaml:"transport_retries" env:"LOOP_TRANSPORT_RETRIES" env-default:"2"`
	// WallClock is the overall ceiling per question, independent of
	// attempt count.
	WallClock time.Duration `yaml:"wall_clock" env:"LOOP_WALL_CLOCK" env-default:"120s"`
}

// ExecutionConfig bounds sandbox execution.
type ExecutionConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"EXECUTION_TIMEOUT" env-default:"30s"`
	MaxRows int           `yaml:"max_rows" env:"EXECUTION_MAX_ROWS" env-default:"1000"`
}

// CacheConfig tunes the optional fingerprint cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"CACHE_ENABLED" env-default:"false"`
	TTL     time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"10m"`
	MaxSize int           `yaml:"max_size" env:"CACHE_MAX_SIZE" env-default:"1000"`
}

// Load reads config.yaml (if present) with environment overrides.
func Load() (*Config, error) {
	return LoadFrom("config.yaml")
}

// LoadFrom reads the given YAML file with environment overrides. A
// missing file is not an error: all fields have defaults or env vars.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}

	err := cleanenv.ReadConfig(path, cfg)
	if errors.Is(err, os.ErrNotExist) {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.TokenBudget <= 0 {
		return fmt.Errorf("retrieval token_budget must be positive, got %d", c.Retrieval.TokenBudget)
	}
	if c.Loop.SemanticRetries < 1 {
		return fmt.Errorf("loop semantic_retries must be at least 1, got %d", c.Loop.SemanticRetries)
	}
	if c.Execution.MaxRows <= 0 {
		return fmt.Errorf("execution max_rows must be positive, got %d", c.Execution.MaxRows)
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	return nil
}
