package providers

import (
	"os"
)

// TestConfig holds provider configurations loaded from environment variables.
// This allows tests to use the same configuration pattern as production.
type TestConfig struct {
	OpenRouterAPIKey string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
}

// LoadTestConfig loads provider API keys from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
	}
}

// HasOpenRouter returns true if OpenRouter API key is configured.
func (c TestConfig) HasOpenRouter() bool {
	return c.OpenRouterAPIKey != ""
}

// HasOpenAI returns true if an OpenAI-compatible API key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasAnyLLM returns true if any LLM provider is configured.
func (c TestConfig) HasAnyLLM() bool {
	return c.HasOpenRouter() || c.HasOpenAI()
}

// NewOpenRouterClient creates an OpenRouter client from test config.
// Returns nil if not configured.
func (c TestConfig) NewOpenRouterClient() *OpenRouterClient {
	if !c.HasOpenRouter() {
		return nil
	}
	return NewOpenRouterClient(OpenRouterConfig{
		APIKey: c.OpenRouterAPIKey,
	})
}

// NewOpenAIClient creates an OpenAI-compatible client from test config.
// Returns nil if not configured.
func (c TestConfig) NewOpenAIClient() *OpenAIClient {
	if !c.HasOpenAI() {
		return nil
	}
	return NewOpenAIClient(OpenAIConfig{
		APIKey:  c.OpenAIAPIKey,
		BaseURL: c.OpenAIBaseURL,
	})
}

// ToRegistryConfig converts test config to a RegistryConfig for the provider registry.
// Only includes providers that have API keys configured.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{
		LLMProviders: make(map[string]LLMProviderConfig),
	}

	if c.HasOpenRouter() {
		cfg.LLMProviders["openrouter"] = LLMProviderConfig{
			Type:      "openrouter",
			APIKey:    c.OpenRouterAPIKey,
			RateLimit: 60,
			Enabled:   true,
		}
	}
	if c.HasOpenAI() {
		cfg.LLMProviders["openai"] = LLMProviderConfig{
			Type:      "openai",
			APIKey:    c.OpenAIAPIKey,
			BaseURL:   c.OpenAIBaseURL,
			RateLimit: 60,
			Enabled:   true,
		}
	}

	return cfg
}
