package config

import (
	"fmt"
	"time"
)

// Config holds vbpl configuration.
// Stored at: ~/.vbpl/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers" json:"llm_providers"`
	Embedding    EmbeddingCfg              `mapstructure:"embedding" yaml:"embedding" json:"embedding"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults" json:"defaults"`
	Resolver     ResolverCfg               `mapstructure:"resolver" yaml:"resolver" json:"resolver"`
	Chunker      ChunkerCfg                `mapstructure:"chunker" yaml:"chunker" json:"chunker"`
	Store        StoreCfg                  `mapstructure:"store" yaml:"store" json:"store"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type" json:"type"`                   // "openrouter", "openai"
	Model          string  `mapstructure:"model" yaml:"model" json:"model"`                // Model name
	APIKey         string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`          // API key (supports ${ENV_VAR} syntax)
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url" json:"base_url"`       // Optional endpoint override
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"` // Requests per second
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"` // HTTP timeout
}

// EmbeddingCfg configures the embedder used for the vector index.
type EmbeddingCfg struct {
	Type       string `mapstructure:"type" yaml:"type" json:"type"` // "openai"
	Model      string `mapstructure:"model" yaml:"model" json:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Dimensions int    `mapstructure:"dimensions" yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// DefaultsCfg specifies default provider selections.
type DefaultsCfg struct {
	LLMProvider   string `mapstructure:"llm_provider" yaml:"llm_provider" json:"llm_provider"`       // Provider for relationship classification
	ChunkProvider string `mapstructure:"chunk_provider" yaml:"chunk_provider" json:"chunk_provider"` // Provider for LLM chunking
	LogLevel      string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`                // debug, info, warn, error
}

// ResolverCfg tunes the relationship resolver.
type ResolverCfg struct {
	Concurrency        int     `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	MaxAttempts        int     `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	CallTimeoutSeconds int     `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds" json:"call_timeout_seconds"`
	RetryDelayMs       int     `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms" json:"retry_delay_ms"`
	Temperature        float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
}

// CallTimeout is the per-call deadline.
func (r ResolverCfg) CallTimeout() time.Duration {
	return time.Duration(r.CallTimeoutSeconds) * time.Second
}

// RetryDelay is the base delay between attempts.
func (r ResolverCfg) RetryDelay() time.Duration {
	return time.Duration(r.RetryDelayMs) * time.Millisecond
}

// Chunking modes.
const (
	ChunkModePrefix = "prefix"
	ChunkModeLLM    = "llm"
)

// ChunkerCfg selects the segmentation path.
type ChunkerCfg struct {
	Mode        string  `mapstructure:"mode" yaml:"mode" json:"mode"` // "prefix" or "llm"
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`
}

// StoreCfg locates the SQLite database.
type StoreCfg struct {
	Path         string `mapstructure:"path" yaml:"path" json:"path"` // Empty means ~/.vbpl/vbpl.db
	EmbeddingDim int    `mapstructure:"embedding_dim" yaml:"embedding_dim" json:"embedding_dim"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:           "openrouter",
				Model:          "openai/gpt-4o-mini",
				APIKey:         "${OPENROUTER_API_KEY}",
				RateLimit:      10.0,
				Enabled:        true,
				TimeoutSeconds: 120,
			},
			"openai": {
				Type:           "openai",
				Model:          "gpt-4o-mini",
				APIKey:         "${OPENAI_API_KEY}",
				RateLimit:      10.0,
				Enabled:        true,
				TimeoutSeconds: 120,
			},
		},
		Embedding: EmbeddingCfg{
			Type:       "openai",
			Model:      "text-embedding-3-small",
			APIKey:     "${OPENAI_API_KEY}",
			Dimensions: 1536,
			BatchSize:  64,
			Enabled:    true,
		},
		Defaults: DefaultsCfg{
			LLMProvider:   "openai",
			ChunkProvider: "openai",
			LogLevel:      "info",
		},
		Resolver: ResolverCfg{
			Concurrency:        5,
			MaxAttempts:        3,
			CallTimeoutSeconds: 60,
			RetryDelayMs:       500,
			Temperature:        0.5,
		},
		Chunker: ChunkerCfg{
			Mode:        ChunkModePrefix,
			Temperature: 0.8,
		},
		Store: StoreCfg{
			EmbeddingDim: 1536,
		},
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Chunker.Mode {
	case ChunkModePrefix, ChunkModeLLM:
	default:
		return fmt.Errorf("chunker.mode must be %q or %q, got %q", ChunkModePrefix, ChunkModeLLM, c.Chunker.Mode)
	}
	switch c.Defaults.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("defaults.log_level %q is not one of debug, info, warn, error", c.Defaults.LogLevel)
	}
	if c.Store.EmbeddingDim <= 0 {
		return fmt.Errorf("store.embedding_dim must be positive, got %d", c.Store.EmbeddingDim)
	}
	if c.Embedding.Enabled && c.Embedding.Dimensions != c.Store.EmbeddingDim {
		return fmt.Errorf("embedding.dimensions (%d) does not match store.embedding_dim (%d)",
			c.Embedding.Dimensions, c.Store.EmbeddingDim)
	}
	if c.Resolver.Concurrency < 1 || c.Resolver.MaxAttempts < 1 {
		return fmt.Errorf("resolver.concurrency and resolver.max_attempts must be at least 1")
	}
	return nil
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Redacted returns a copy safe to display: literal API keys are masked,
// ${ENV_VAR} references are kept.
func (c *Config) Redacted() *Config {
	out := *c
	out.LLMProviders = make(map[string]LLMProviderCfg, len(c.LLMProviders))
	for name, p := range c.LLMProviders {
		p.APIKey = redactKey(p.APIKey)
		out.LLMProviders[name] = p
	}
	out.Embedding.APIKey = redactKey(out.Embedding.APIKey)
	return &out
}

func redactKey(key string) string {
	if key == "" || envRef.MatchString(key) {
		return key
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
