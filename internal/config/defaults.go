package config

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default configuration as flat keys. They seed
// viper's defaults, so every key here can also be set through the
// environment (VBPL_RESOLVER_CONCURRENCY=8) or the database override store.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// LLM Providers
		// ===================

		// LLM Providers - OpenRouter
		{
			Key:         "llm_providers.openrouter.type",
			Value:       "openrouter",
			Description: "LLM provider type for OpenRouter",
		},
		{
			Key:         "llm_providers.openrouter.model",
			Value:       "openai/gpt-4o-mini",
			Description: "Default model for OpenRouter",
		},
		{
			Key:         "llm_providers.openrouter.api_key",
			Value:       "${OPENROUTER_API_KEY}",
			Description: "OpenRouter API key (uses environment variable)",
		},
		{
			Key:         "llm_providers.openrouter.rate_limit",
			Value:       10.0,
			Description: "Rate limit in requests per second for OpenRouter",
		},
		{
			Key:         "llm_providers.openrouter.enabled",
			Value:       true,
			Description: "Whether the OpenRouter provider is enabled",
		},
		{
			Key:         "llm_providers.openrouter.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for OpenRouter requests",
		},

		// LLM Providers - OpenAI
		{
			Key:         "llm_providers.openai.type",
			Value:       "openai",
			Description: "LLM provider type for OpenAI-compatible endpoints",
		},
		{
			Key:         "llm_providers.openai.model",
			Value:       "gpt-4o-mini",
			Description: "Default model for OpenAI",
		},
		{
			Key:         "llm_providers.openai.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "OpenAI API key (uses environment variable)",
		},
		{
			Key:         "llm_providers.openai.rate_limit",
			Value:       10.0,
			Description: "Rate limit in requests per second for OpenAI",
		},
		{
			Key:         "llm_providers.openai.enabled",
			Value:       true,
			Description: "Whether the OpenAI provider is enabled",
		},
		{
			Key:         "llm_providers.openai.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for OpenAI requests",
		},

		// ===================
		// Embedding
		// ===================
		{
			Key:         "embedding.type",
			Value:       "openai",
			Description: "Embedding provider type",
		},
		{
			Key:         "embedding.model",
			Value:       "text-embedding-3-small",
			Description: "Embedding model",
		},
		{
			Key:         "embedding.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "Embedding API key (uses environment variable)",
		},
		{
			Key:         "embedding.dimensions",
			Value:       1536,
			Description: "Embedding vector width; must match store.embedding_dim",
		},
		{
			Key:         "embedding.batch_size",
			Value:       64,
			Description: "Articles embedded per request",
		},
		{
			Key:         "embedding.enabled",
			Value:       true,
			Description: "Whether ingest writes article embeddings",
		},

		// ===================
		// Pipeline Defaults
		// ===================
		{
			Key:         "defaults.llm_provider",
			Value:       "openai",
			Description: "LLM provider used for relationship classification",
		},
		{
			Key:         "defaults.chunk_provider",
			Value:       "openai",
			Description: "LLM provider used for LLM chunking",
		},
		{
			Key:         "defaults.log_level",
			Value:       "info",
			Description: "Log level: debug, info, warn or error",
		},

		// ===================
		// Resolver
		// ===================
		{
			Key:         "resolver.concurrency",
			Value:       5,
			Description: "Articles classified in parallel",
		},
		{
			Key:         "resolver.max_attempts",
			Value:       3,
			Description: "Classification attempts per article before FAILED_EMPTY",
		},
		{
			Key:         "resolver.call_timeout_seconds",
			Value:       60,
			Description: "Deadline for one classification call",
		},
		{
			Key:         "resolver.retry_delay_ms",
			Value:       500,
			Description: "Base backoff between classification attempts",
		},
		{
			Key:         "resolver.temperature",
			Value:       0.5,
			Description: "Sampling temperature for classification",
		},

		// ===================
		// Chunker
		// ===================
		{
			Key:         "chunker.mode",
			Value:       ChunkModePrefix,
			Description: "Segmentation path: prefix or llm",
		},
		{
			Key:         "chunker.temperature",
			Value:       0.8,
			Description: "Sampling temperature for LLM chunking",
		},

		// ===================
		// Store
		// ===================
		{
			Key:         "store.path",
			Value:       "",
			Description: "SQLite database path (empty uses ~/.vbpl/vbpl.db)",
		},
		{
			Key:         "store.embedding_dim",
			Value:       1536,
			Description: "Width of the vec0 embedding column",
		},
	}
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault pins a config key to its default value in the store,
// shadowing any file or environment setting.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
