package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds named LLM clients and embedders.
// It supports config-driven instantiation, hot-reload, and thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	embedders  map[string]Embedder
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients: make(map[string]LLMClient),
		embedders:  make(map[string]Embedder),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// UnregisterLLM removes an LLM client by name.
func (r *Registry) UnregisterLLM(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.llmClients, name)
	if r.logger != nil {
		r.logger.Info("unregistered LLM client", "name", name)
	}
}

// RegisterEmbedder registers an embedder by name.
func (r *Registry) RegisterEmbedder(name string, e Embedder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders[name] = e
	if r.logger != nil {
		r.logger.Info("registered embedder", "name", name)
	}
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client %q: %w", name, ErrNotFound)
	}
	return client, nil
}

// GetEmbedder returns an embedder by name.
func (r *Registry) GetEmbedder(name string) (Embedder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.embedders[name]
	if !ok {
		return nil, fmt.Errorf("embedder %q: %w", name, ErrNotFound)
	}
	return e, nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.llmClients[name]
	return ok
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
	Embedders    map[string]EmbedderConfig
}

// LLMProviderConfig matches config.LLMProviderCfg with resolved API key.
type LLMProviderConfig struct {
	Type      string  // "openrouter", "openai"
	Model     string  // Model name
	APIKey    string  // Resolved API key
	BaseURL   string  // Optional endpoint override
	RateLimit float64 // Requests per second
	Timeout   time.Duration
	Enabled   bool
}

// EmbedderConfig matches config.EmbeddingCfg with resolved API key.
type EmbedderConfig struct {
	Type       string // "openai"
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	BatchSize  int
	Enabled    bool
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with valid API keys will be registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured are unregistered; providers with
// changed settings are re-created.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantLLM := make(map[string]bool)
	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		wantLLM[name] = true

		existing, hasExisting := r.llmClients[name]
		if hasExisting && !needsLLMUpdate(existing, provCfg) {
			continue
		}
		client := createLLMClient(provCfg)
		if client == nil {
			if r.logger != nil {
				r.logger.Warn("unknown LLM provider type", "name", name, "type", provCfg.Type)
			}
			continue
		}
		r.llmClients[name] = client
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
			}
		}
	}

	wantEmbed := make(map[string]bool)
	for name, embCfg := range cfg.Embedders {
		if !embCfg.Enabled || embCfg.APIKey == "" {
			continue
		}
		wantEmbed[name] = true
		if e := createEmbedder(embCfg); e != nil {
			r.embedders[name] = e
		}
	}

	for name := range r.llmClients {
		if !wantLLM[name] {
			delete(r.llmClients, name)
			if r.logger != nil {
				r.logger.Info("unregistered LLM client", "name", name)
			}
		}
	}
	for name := range r.embedders {
		if !wantEmbed[name] {
			delete(r.embedders, name)
		}
	}
}

// createLLMClient creates an LLM client based on provider type.
func createLLMClient(cfg LLMProviderConfig) LLMClient {
	switch cfg.Type {
	case "openrouter":
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			RPS:          cfg.RateLimit,
			Timeout:      cfg.Timeout,
		})
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			RateLimit:    cfg.RateLimit,
			Timeout:      cfg.Timeout,
		})
	default:
		return nil
	}
}

func createEmbedder(cfg EmbedderConfig) Embedder {
	switch cfg.Type {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			EmbeddingModel: cfg.Model,
			EmbeddingDims:  cfg.Dimensions,
			EmbedBatchSize: cfg.BatchSize,
		})
	default:
		return nil
	}
}

// needsLLMUpdate checks if an LLM client needs to be recreated.
func needsLLMUpdate(client LLMClient, cfg LLMProviderConfig) bool {
	switch c := client.(type) {
	case *OpenRouterClient:
		return cfg.Type != "openrouter" ||
			c.apiKey != cfg.APIKey ||
			c.defaultModel != cfg.Model ||
			c.rps != cfg.RateLimit
	case *OpenAIClient:
		return cfg.Type != "openai" ||
			c.apiKey != cfg.APIKey ||
			c.defaultModel != cfg.Model ||
			c.baseURL != cfg.BaseURL ||
			c.rateLimit != cfg.RateLimit
	default:
		return true
	}
}
