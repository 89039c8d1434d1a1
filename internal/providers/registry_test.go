package providers

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Run("register and get LLM", func(t *testing.T) {
		r := NewRegistry()
		mock := NewMockClient()

		r.RegisterLLM("test-llm", mock)

		client, err := r.GetLLM("test-llm")
		if err != nil {
			t.Fatalf("GetLLM() error = %v", err)
		}
		if client != mock {
			t.Error("got different client than registered")
		}
	})

	t.Run("register and get embedder", func(t *testing.T) {
		r := NewRegistry()
		e := &MockEmbedder{Dims: 8}

		r.RegisterEmbedder("vectors", e)

		got, err := r.GetEmbedder("vectors")
		if err != nil {
			t.Fatalf("GetEmbedder() error = %v", err)
		}
		if got != e {
			t.Error("got different embedder than registered")
		}
	})

	t.Run("get nonexistent LLM", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.GetLLM("nonexistent")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list providers", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterLLM("llm1", NewMockClient())
		r.RegisterLLM("llm2", NewMockClient())

		llmList := r.ListLLM()
		if len(llmList) != 2 || llmList[0] != "llm1" {
			t.Errorf("ListLLM() = %v, want sorted [llm1 llm2]", llmList)
		}
	})

	t.Run("has providers", func(t *testing.T) {
		r := NewRegistry()
		r.RegisterLLM("my-llm", NewMockClient())

		if !r.HasLLM("my-llm") {
			t.Error("HasLLM() = false for registered LLM")
		}
		if r.HasLLM("other-llm") {
			t.Error("HasLLM() = true for unregistered LLM")
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		r := NewRegistry()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				r.RegisterLLM("concurrent-llm", NewMockClient())
			}(i)
			go func(n int) {
				defer wg.Done()
				r.GetLLM("concurrent-llm") // May fail, that's ok
			}(i)
		}
		wg.Wait()
	})
}

func TestNewRegistryFromConfig(t *testing.T) {
	t.Run("registers providers from config", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					Model:   "openai/gpt-4o-mini",
					APIKey:  "test-openrouter-key",
					Enabled: true,
				},
			},
			Embedders: map[string]EmbedderConfig{
				"openai": {
					Type:       "openai",
					Model:      "text-embedding-3-large",
					Dimensions: 1536,
					APIKey:     "test-openai-key",
					Enabled:    true,
				},
			},
		})

		if !r.HasLLM("openrouter") {
			t.Error("expected openrouter to be registered")
		}
		e, err := r.GetEmbedder("openai")
		if err != nil {
			t.Fatalf("GetEmbedder() error = %v", err)
		}
		if e.Dimensions() != 1536 {
			t.Errorf("Dimensions() = %d, want 1536", e.Dimensions())
		}
	})

	t.Run("skips disabled providers", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					APIKey:  "test-key",
					Enabled: false, // Disabled
				},
			},
		})

		if r.HasLLM("openrouter") {
			t.Error("disabled provider should not be registered")
		}
	})

	t.Run("skips providers without API keys", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					APIKey:  "", // Empty
					Enabled: true,
				},
			},
		})

		if r.HasLLM("openrouter") {
			t.Error("provider without API key should not be registered")
		}
	})

	t.Run("creates openai-compatible client", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"local": {
					Type:    "openai",
					Model:   "qwen2.5-7b-instruct",
					BaseURL: "http://localhost:8000/v1",
					APIKey:  "sk-local",
					Enabled: true,
				},
			},
		})

		client, err := r.GetLLM("local")
		if err != nil {
			t.Fatalf("GetLLM() error = %v", err)
		}
		oc, ok := client.(*OpenAIClient)
		if !ok {
			t.Fatalf("expected OpenAIClient, got %T", client)
		}
		if oc.defaultModel != "qwen2.5-7b-instruct" || oc.baseURL != "http://localhost:8000/v1" {
			t.Errorf("unexpected client settings: model=%s base=%s", oc.defaultModel, oc.baseURL)
		}
	})

	t.Run("skips unknown provider types", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"weird": {Type: "carrier-pigeon", APIKey: "k", Enabled: true},
			},
		})
		if r.HasLLM("weird") {
			t.Error("unknown provider type should not be registered")
		}
	})

	t.Run("uses custom model for LLM provider", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					Model:   "custom-model",
					APIKey:  "test-key",
					Enabled: true,
				},
			},
		})

		client, _ := r.GetLLM("openrouter")
		orClient, ok := client.(*OpenRouterClient)
		if !ok {
			t.Fatal("expected OpenRouterClient")
		}
		if orClient.defaultModel != "custom-model" {
			t.Errorf("expected custom-model, got %s", orClient.defaultModel)
		}
	})
}

func TestRegistry_Reload(t *testing.T) {
	t.Run("adds new providers on reload", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{}) // Start empty

		if r.HasLLM("openrouter") {
			t.Error("should start without openrouter")
		}

		// Reload with new config
		r.Reload(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					APIKey:  "new-key",
					Enabled: true,
				},
			},
		})

		if !r.HasLLM("openrouter") {
			t.Error("expected openrouter after reload")
		}
	})

	t.Run("removes providers on reload", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					APIKey:  "key",
					Enabled: true,
				},
			},
		})

		if !r.HasLLM("openrouter") {
			t.Error("should start with openrouter")
		}

		// Reload with empty config
		r.Reload(RegistryConfig{})

		if r.HasLLM("openrouter") {
			t.Error("openrouter should be removed after reload")
		}
	})

	t.Run("updates providers with changed API keys", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					APIKey:  "old-key",
					Enabled: true,
				},
			},
		})

		client, _ := r.GetLLM("openrouter")
		oldClient := client.(*OpenRouterClient)
		if oldClient.apiKey != "old-key" {
			t.Error("should start with old key")
		}

		// Reload with new key
		r.Reload(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					APIKey:  "new-key",
					Enabled: true,
				},
			},
		})

		client, _ = r.GetLLM("openrouter")
		newClient := client.(*OpenRouterClient)
		if newClient.apiKey != "new-key" {
			t.Errorf("expected new-key, got %s", newClient.apiKey)
		}
	})

	t.Run("keeps providers with unchanged config", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:      "openrouter",
					Model:     "test-model",
					APIKey:    "same-key",
					RateLimit: 60, // Explicit rate limit
					Enabled:   true,
				},
			},
		})

		client1, _ := r.GetLLM("openrouter")

		// Reload with same config (including same rate limit)
		r.Reload(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:      "openrouter",
					Model:     "test-model",
					APIKey:    "same-key",
					RateLimit: 60, // Same rate limit
					Enabled:   true,
				},
			},
		})

		client2, _ := r.GetLLM("openrouter")

		// Should be the same instance
		if client1 != client2 {
			t.Error("client should not be replaced when config unchanged")
		}
	})

	t.Run("concurrent reload is safe", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			LLMProviders: map[string]LLMProviderConfig{
				"openrouter": {
					Type:    "openrouter",
					APIKey:  "key",
					Enabled: true,
				},
			},
		})

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(n int) {
				defer wg.Done()
				r.Reload(RegistryConfig{
					LLMProviders: map[string]LLMProviderConfig{
						"openrouter": {
							Type:    "openrouter",
							APIKey:  "key-" + string(rune('a'+n)),
							Enabled: true,
						},
					},
				})
			}(i)
			go func() {
				defer wg.Done()
				r.GetLLM("openrouter") // May fail, that's ok
			}()
		}
		wg.Wait()
	})
}
