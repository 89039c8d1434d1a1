package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestOpenRouterClient_Chat(t *testing.T) {
	t.Run("successful chat", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}

			var req openRouterRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("unexpected messages: %+v", req.Messages)
			}
			if req.Temperature != 0.5 {
				t.Errorf("temperature = %v, want 0.5", req.Temperature)
			}

			resp := map[string]any{
				"id":    "test-id",
				"model": "openai/gpt-4o-mini",
				"choices": []map[string]any{
					{
						"message": map[string]any{
							"role":    "assistant",
							"content": "Điều 5 sửa đổi Điều 3.",
						},
						"finish_reason": "stop",
					},
				},
				"usage": map[string]any{
					"prompt_tokens":     10,
					"completion_tokens": 8,
					"total_tokens":      18,
					"cost":              0.0002,
				},
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages:    SystemUser("classify", "Điều 5"),
			Temperature: 0.5,
		})

		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if !result.Success {
			t.Error("expected Success = true")
		}
		if result.Content != "Điều 5 sửa đổi Điều 3." {
			t.Errorf("Content = %q", result.Content)
		}
		if result.TotalTokens != 18 {
			t.Errorf("TotalTokens = %d, want 18", result.TotalTokens)
		}
		if result.CostUSD != 0.0002 {
			t.Errorf("CostUSD = %v, want 0.0002", result.CostUSD)
		}
		if result.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", result.Attempts)
		}
	})

	t.Run("structured output", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]any{
				"id":    "test-id",
				"model": "test-model",
				"choices": []map[string]any{
					{
						"message": map[string]any{
							"role":    "assistant",
							"content": "```json\n{\"start_line\": 3, \"end_line\": 9}\n```",
						},
					},
				},
				"usage": map[string]int{},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "test"}},
			ResponseFormat: &ResponseFormat{
				Type:       "json_schema",
				JSONSchema: json.RawMessage(`{"schema":{"type":"object","required":["start_line","end_line"]}}`),
			},
		})

		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.ParsedJSON == nil {
			t.Error("expected ParsedJSON to be set")
		}
		if !result.Success {
			t.Errorf("expected Success = true, got error %q", result.ErrorMessage)
		}
	})

	t.Run("structured output schema mismatch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]any{
				"id":    "test-id",
				"model": "test-model",
				"choices": []map[string]any{
					{"message": map[string]any{"role": "assistant", "content": `{"start_line": 3}`}},
				},
				"usage": map[string]int{},
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "test"}},
			ResponseFormat: &ResponseFormat{
				Type:       "json_schema",
				JSONSchema: json.RawMessage(`{"schema":{"type":"object","required":["start_line","end_line"]}}`),
			},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Success {
			t.Error("expected Success = false")
		}
		if result.ErrorType != "json_parse" {
			t.Errorf("ErrorType = %s, want json_parse", result.ErrorType)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "Rate limit exceeded"}}`))
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
		})

		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "test"}},
		})

		if err == nil {
			t.Fatal("expected error")
		}
		if result.Success {
			t.Error("expected Success = false")
		}
		if result.ErrorType != "rate_limited" {
			t.Errorf("ErrorType = %s, want rate_limited", result.ErrorType)
		}
		rle, ok := IsRateLimitError(err)
		if !ok {
			t.Fatalf("expected RateLimitError, got %T: %v", err, err)
		}
		if rle.RetryAfter != 2*time.Second {
			t.Errorf("RetryAfter = %v, want 2s", rle.RetryAfter)
		}
	})

	t.Run("retries server errors with nonce", func(t *testing.T) {
		var calls atomic.Int32
		var lastUser string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req openRouterRequest
			json.NewDecoder(r.Body).Decode(&req)
			lastUser = req.Messages[len(req.Messages)-1].Content
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":      "ok",
				"model":   "m",
				"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "ok"}}},
				"usage":   map[string]int{},
			})
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			RetryDelay: time.Millisecond,
		})
		result, err := client.Chat(context.Background(), &ChatRequest{
			Messages: []Message{{Role: "user", Content: "Điều 1"}},
		})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if result.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", result.Attempts)
		}
		if !strings.Contains(lastUser, "retry_1_id") {
			t.Errorf("expected nonce in retried message, got %q", lastUser)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Chat(ctx, &ChatRequest{
			Messages: []Message{{Role: "user", Content: "test"}},
		})

		if err == nil {
			t.Error("expected error from cancelled context")
		}
	})
}

func TestOpenRouterClient_Config(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey: "test-key",
		})

		if client.Name() != OpenRouterName {
			t.Errorf("Name() = %s, want %s", client.Name(), OpenRouterName)
		}
		if client.baseURL != OpenRouterBaseURL {
			t.Errorf("baseURL = %s, want %s", client.baseURL, OpenRouterBaseURL)
		}
		if client.defaultModel != "openai/gpt-4o-mini" {
			t.Errorf("defaultModel = %s", client.defaultModel)
		}
	})

	t.Run("rate limit properties", func(t *testing.T) {
		client := NewOpenRouterClient(OpenRouterConfig{
			APIKey:     "test-key",
			RPS:        50.0,
			MaxRetries: 5,
			RetryDelay: 2 * time.Second,
		})

		if client.RequestsPerSecond() != 50.0 {
			t.Errorf("RequestsPerSecond() = %f, want 50.0", client.RequestsPerSecond())
		}
		if client.MaxRetries() != 5 {
			t.Errorf("MaxRetries() = %d, want 5", client.MaxRetries())
		}
		if client.RetryDelayBase() != 2*time.Second {
			t.Errorf("RetryDelayBase() = %v, want 2s", client.RetryDelayBase())
		}
	})
}

// TestOpenRouterIntegration runs a real call against the OpenRouter API.
// Requires OPENROUTER_API_KEY environment variable to be set.
func TestOpenRouterIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	cfg := LoadTestConfig()
	if !cfg.HasOpenRouter() {
		t.Skip("OPENROUTER_API_KEY not set")
	}

	client := cfg.NewOpenRouterClient()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := client.Chat(ctx, &ChatRequest{
		Messages:  SystemUser("Reply with the single word OK.", "ping"),
		MaxTokens: 10,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success || result.Content == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
