// Package llmchunk segments a document by asking a chat model for its
// CHAPTER/SECTION/ARTICLE outline over numbered lines. The model only
// reports line spans; article content, clauses, continuity and ids are
// derived locally so the result has the same shape as the deterministic
// segmenter's.
package llmchunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/vbpl/internal/ident"
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/llmcall"
	"github.com/jackzampolin/vbpl/internal/metrics"
	"github.com/jackzampolin/vbpl/internal/prompts"
	"github.com/jackzampolin/vbpl/internal/providers"
	"github.com/jackzampolin/vbpl/internal/segment"
	"github.com/jackzampolin/vbpl/internal/textnorm"
)

// DefaultTemperature is the sampling temperature for chunking calls.
const DefaultTemperature = 0.8

// Config configures a Chunker.
type Config struct {
	Model       string  // Uses the client default if empty
	Temperature float64 // Default: DefaultTemperature
	MaxTokens   int

	// RepairAttempts bounds follow-up calls after unusable output.
	// Default: providers.MaxStructuredRepairAttempts
	RepairAttempts int

	Prompts  *prompts.Resolver
	Recorder *llmcall.Recorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Chunker is the LLM structural chunking path.
type Chunker struct {
	client providers.LLMClient
	cfg    Config
	logger *slog.Logger
}

// New creates a Chunker over client.
func New(client providers.LLMClient, cfg Config) *Chunker {
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.RepairAttempts == 0 {
		cfg.RepairAttempts = providers.MaxStructuredRepairAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{client: client, cfg: cfg, logger: logger}
}

// Chunk segments text. Empty input yields an empty document without a
// model call. Output that cannot be parsed, validated or resolved against
// the text is sent back to the model for repair; once repairs run out the
// error wraps ErrMalformed.
func (c *Chunker) Chunk(ctx context.Context, documentID, text string) (segment.Document, error) {
	lines := textnorm.Lines(textnorm.Normalize(text))
	if len(lines) == 0 {
		return segment.Document{}, nil
	}

	system, hash, err := c.systemPrompt(ctx, documentID)
	if err != nil {
		return segment.Document{}, fmt.Errorf("resolving chunk prompt: %w", err)
	}
	messages := providers.SystemUser(system, NumberLines(lines))

	for attempt := 0; ; attempt++ {
		res, err := c.call(ctx, documentID, hash, messages)
		if err != nil {
			return segment.Document{}, fmt.Errorf("chunking %s: %w", documentID, err)
		}

		doc, issue := c.decode(res, lines)
		if issue == nil {
			ident.Assign(doc.Forest)
			c.logger.Info("llm chunked document",
				"document_id", documentID,
				"attempts", attempt+1,
				"chapters", doc.Forest.Count(legal.KindChapter),
				"sections", doc.Forest.Count(legal.KindSection),
				"articles", doc.Forest.Count(legal.KindArticle))
			return doc, nil
		}
		if errors.Is(issue, ErrNoStructure) {
			return segment.Document{}, issue
		}
		if attempt >= c.cfg.RepairAttempts {
			return segment.Document{}, fmt.Errorf("%w: %v", ErrMalformed, issue)
		}

		c.logger.Warn("chunk output unusable, requesting repair",
			"document_id", documentID, "attempt", attempt+1, "error", issue)
		messages = append(messages,
			providers.Message{Role: "assistant", Content: res.Content},
			providers.Message{Role: "user", Content: providers.StructuredRepairPrompt(Schema, res.Content, issue)},
		)
	}
}

func (c *Chunker) call(ctx context.Context, documentID, hash string, messages []providers.Message) (*providers.ChatResult, error) {
	temp := c.cfg.Temperature
	req := &providers.ChatRequest{
		Messages:    messages,
		Model:       c.cfg.Model,
		Temperature: temp,
		MaxTokens:   c.cfg.MaxTokens,
		RequestID:   documentID,
	}

	start := time.Now()
	res, err := c.client.Chat(ctx, req)
	elapsed := time.Since(start)

	c.cfg.Recorder.Record(res, llmcall.RecordOptions{
		DocumentID:  documentID,
		PromptKey:   PromptKey,
		PromptHash:  hash,
		Temperature: &temp,
		Err:         err,
	})
	success := err == nil && res != nil && res.Success
	var pt, ct int
	if res != nil {
		pt, ct = res.PromptTokens, res.CompletionTokens
	}
	c.cfg.Metrics.LLMCall(PromptKey, success, elapsed.Seconds(), pt, ct)

	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%s returned no result", c.client.Name())
	}
	if !res.Success {
		return nil, fmt.Errorf("%s: %s", res.ErrorType, res.ErrorMessage)
	}
	return res, nil
}

func (c *Chunker) decode(res *providers.ChatResult, lines []textnorm.Line) (segment.Document, error) {
	parsed, err := providers.ParseStructuredJSON(res.Content)
	if err != nil {
		return segment.Document{}, err
	}
	if err := providers.ValidateStructuredJSON(Schema, parsed); err != nil {
		return segment.Document{}, err
	}
	var nodes []rawNode
	if err := json.Unmarshal(parsed, &nodes); err != nil {
		return segment.Document{}, fmt.Errorf("decoding structure: %w", err)
	}
	return assemble(lines, nodes, c.logger)
}
