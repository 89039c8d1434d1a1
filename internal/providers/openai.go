package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName                 = "openai"
	openAIDefaultModel         = "gpt-4o-mini"
	openAIDefaultEmbedModel    = "text-embedding-3-large"
	openAIDefaultEmbedDims     = 1536
	openAIDefaultEmbedBatchMax = 64
)

// OpenAIConfig holds configuration for any OpenAI-compatible endpoint
// (OpenAI itself, vLLM, LM Studio, DeepSeek, ...).
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // Optional; OPENAI_BASE_URL-style override
	DefaultModel   string
	EmbeddingModel string
	EmbeddingDims  int
	EmbedBatchSize int
	RateLimit      float64       // Requests per second
	MaxRetries     int           // Retry attempts for SDK transport
	Timeout        time.Duration // HTTP timeout
	HTTPClient     *http.Client  // Optional (tests)
}

// OpenAIClient implements LLMClient and Embedder using the official SDK.
type OpenAIClient struct {
	apiKey         string
	baseURL        string
	defaultModel   string
	embeddingModel string
	embeddingDims  int
	embedBatchSize int
	rateLimit      float64
	maxRetries     int
	client         openai.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = openAIDefaultEmbedModel
	}
	if cfg.EmbeddingDims <= 0 {
		cfg.EmbeddingDims = openAIDefaultEmbedDims
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = openAIDefaultEmbedBatchMax
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 8.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:         cfg.APIKey,
		baseURL:        cfg.BaseURL,
		defaultModel:   cfg.DefaultModel,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDims:  cfg.EmbeddingDims,
		embedBatchSize: cfg.EmbedBatchSize,
		rateLimit:      cfg.RateLimit,
		maxRetries:     cfg.MaxRetries,
		client:         openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// RequestsPerSecond returns the configured rate limit.
func (c *OpenAIClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// Dimensions returns the embedding vector width.
func (c *OpenAIClient) Dimensions() int {
	return c.embeddingDims
}

// Chat sends a chat completion request. Structured output is requested as a
// plain JSON object and validated locally, since many OpenAI-compatible
// servers reject json_schema response formats.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		Attempts:  1,
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = mapOpenAIError(err)
		result.Success = false
		result.ErrorType = "http_error"
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		if rle, ok := IsRateLimitError(err); ok {
			result.ErrorType = "rate_limited"
			result.RetryAfter = rle.RetryAfter
		}
		return result, err
	}
	if len(completion.Choices) == 0 {
		result.Success = false
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		result.TotalTime = time.Since(start)
		return result, fmt.Errorf("no choices in response")
	}

	content := completion.Choices[0].Message.Content
	result.Success = true
	result.Content = content
	result.ModelUsed = completion.Model
	result.PromptTokens = int(completion.Usage.PromptTokens)
	result.CompletionTokens = int(completion.Usage.CompletionTokens)
	result.TotalTokens = int(completion.Usage.TotalTokens)
	result.ReasoningTokens = int(completion.Usage.CompletionTokensDetails.ReasoningTokens)
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	if req.ResponseFormat != nil && content != "" {
		parsed, err := ParseStructuredJSON(content)
		if err == nil {
			err = ValidateStructuredJSON(req.ResponseFormat.JSONSchema, parsed)
		}
		if err != nil {
			result.Success = false
			result.ErrorType = "json_parse"
			result.ErrorMessage = err.Error()
		} else {
			result.ParsedJSON = parsed
		}
	}

	return result, nil
}

// Embed returns one vector per input text, batching requests.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for lo := 0; lo < len(texts); lo += c.embedBatchSize {
		hi := lo + c.embedBatchSize
		if hi > len(texts) {
			hi = len(texts)
		}

		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[lo:hi]},
			Model:      openai.EmbeddingModel(c.embeddingModel),
			Dimensions: openai.Int(int64(c.embeddingDims)),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings failed: %w", mapOpenAIError(err))
		}
		if len(resp.Data) != hi-lo {
			return nil, fmt.Errorf("openai embeddings returned %d vectors for %d inputs", len(resp.Data), hi-lo)
		}

		data := resp.Data
		sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		for i, d := range data {
			vec := make([]float32, len(d.Embedding))
			for k, f := range d.Embedding {
				vec[k] = float32(f)
			}
			out[lo+i] = vec
		}
	}
	return out, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return fmt.Errorf("OpenAI error (status %d): %s", apiErr.StatusCode, msg)
		}
		return fmt.Errorf("OpenAI error (status %d)", apiErr.StatusCode)
	}
	return err
}

var (
	_ LLMClient = (*OpenAIClient)(nil)
	_ Embedder  = (*OpenAIClient)(nil)
)
