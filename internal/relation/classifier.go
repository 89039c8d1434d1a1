package relation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/llmcall"
	"github.com/jackzampolin/vbpl/internal/metrics"
	"github.com/jackzampolin/vbpl/internal/prompts"
	"github.com/jackzampolin/vbpl/internal/providers"
)

// Request is the input for classifying one article.
type Request struct {
	Info    legal.DocumentInfo
	Article legal.Article
}

// ExternalEntry lists the effects one article of the current document has
// on articles of other documents.
type ExternalEntry struct {
	SourceArticleID string          `json:"source_article_id"`
	Relations       legal.Relations `json:"relations"`
}

// Classification is a classifier answer before post-processing.
type Classification struct {
	Relations legal.Relations
	External  []ExternalEntry
}

// Classifier decides which articles an article affects.
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Classification, error)
}

// DefaultTemperature is the sampling temperature for classification calls.
const DefaultTemperature = 0.5

// ClassifierConfig configures an LLMClassifier.
type ClassifierConfig struct {
	Model       string  // Uses the client default if empty
	Temperature float64 // Default: DefaultTemperature
	MaxTokens   int

	Prompts  *prompts.Resolver // Optional; embedded prompts when nil
	Recorder *llmcall.Recorder // Optional
	Metrics  *metrics.Metrics  // Optional
	Logger   *slog.Logger
}

// LLMClassifier classifies articles with a chat model and the relation
// rubric.
type LLMClassifier struct {
	client providers.LLMClient
	cfg    ClassifierConfig
	logger *slog.Logger
}

// NewLLMClassifier creates a classifier over client.
func NewLLMClassifier(client providers.LLMClient, cfg ClassifierConfig) *LLMClassifier {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{client: client, cfg: cfg, logger: logger}
}

// Classify sends one article to the model. Transport failures are returned
// as-is; unusable output is wrapped in ErrMalformed.
func (c *LLMClassifier) Classify(ctx context.Context, req Request) (*Classification, error) {
	p, err := render(ctx, c.cfg.Prompts, req)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	temp := c.cfg.Temperature
	chat := &providers.ChatRequest{
		Messages:       providers.SystemUser(p.system, p.user),
		Model:          c.cfg.Model,
		Temperature:    temp,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
		RequestID:      req.Article.ID,
	}

	start := time.Now()
	res, err := c.client.Chat(ctx, chat)
	elapsed := time.Since(start)

	c.cfg.Recorder.Record(res, llmcall.RecordOptions{
		DocumentID:  req.Info.DocumentID,
		ArticleID:   req.Article.ID,
		PromptKey:   p.key,
		PromptHash:  p.hash,
		Temperature: &temp,
		Err:         err,
	})
	success := err == nil && res != nil && res.Success
	var pt, ct int
	if res != nil {
		pt, ct = res.PromptTokens, res.CompletionTokens
	}
	c.cfg.Metrics.LLMCall(p.key, success, elapsed.Seconds(), pt, ct)

	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s returned no result", c.client.Name())
	}
	if !res.Success {
		if res.ErrorType == "json_parse" {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, res.ErrorMessage)
		}
		return nil, fmt.Errorf("%s: %s", res.ErrorType, res.ErrorMessage)
	}

	parsed := res.ParsedJSON
	if len(parsed) == 0 {
		if parsed, err = providers.ParseStructuredJSON(res.Content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := providers.ValidateStructuredJSON(Schema, parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	cls, err := decodeOutput(parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	c.logger.Debug("article classified",
		"document_id", req.Info.DocumentID,
		"article_id", req.Article.ID,
		"targets", cls.Relations.Len(),
		"external_entries", len(cls.External))
	return cls, nil
}

var _ Classifier = (*LLMClassifier)(nil)
