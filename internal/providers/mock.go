package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockResponse is one scripted answer from a MockClient.
type MockResponse struct {
	Content string
	Err     error
}

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// Responses are returned in order, one per request; once exhausted the
	// client falls back to ResponseText.
	Responses []MockResponse

	// ResponseFunc, when set, wins over everything else.
	ResponseFunc func(req *ChatRequest, n int) (string, error)

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	fail := func(err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = "mock_failure"
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	if c.ShouldFail {
		return fail(fmt.Errorf("mock client configured to fail"))
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return fail(fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		result.Success = false
		result.ErrorType = "context_cancelled"
		result.ErrorMessage = ctx.Err().Error()
		result.TotalTime = time.Since(start)
		return result, ctx.Err()
	}

	content := c.ResponseText
	switch {
	case c.ResponseFunc != nil:
		text, err := c.ResponseFunc(req, int(count))
		if err != nil {
			return fail(err)
		}
		content = text
	case int(count) <= len(c.Responses):
		r := c.Responses[count-1]
		if r.Err != nil {
			return fail(r.Err)
		}
		content = r.Content
	}

	result.Success = true
	result.Content = content
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	// Rough token estimate
	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	completionTokens := len(content) / 4

	result.PromptTokens = promptTokens
	result.CompletionTokens = completionTokens
	result.TotalTokens = promptTokens + completionTokens
	result.CostUSD = 0.001

	if req.ResponseFormat != nil && len(c.ResponseJSON) > 0 {
		result.ParsedJSON = c.ResponseJSON
		result.Content = string(c.ResponseJSON)
	}

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset resets the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

var _ LLMClient = (*MockClient)(nil)

// MockEmbedder returns deterministic vectors derived from text length.
type MockEmbedder struct {
	Dims  int
	Fail  bool
	calls atomic.Int64
}

// Name returns the embedder identifier.
func (e *MockEmbedder) Name() string { return MockClientName }

// Dimensions returns the vector width.
func (e *MockEmbedder) Dimensions() int { return e.Dims }

// Calls returns the number of Embed calls made.
func (e *MockEmbedder) Calls() int64 { return e.calls.Load() }

// Embed returns one vector per text.
func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.Fail {
		return nil, fmt.Errorf("mock embedder configured to fail")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.Dims)
		for k := range v {
			v[k] = float32((len([]rune(t))+k)%7) / 7
		}
		out[i] = v
	}
	return out, nil
}

var _ Embedder = (*MockEmbedder)(nil)
