// Package llmcall records every LLM call made while processing documents
// and answers queries over that log.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/vbpl/internal/providers"
)

// Call represents a recorded LLM API call.
type Call struct {
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	DocumentID string `json:"document_id,omitempty"`
	ArticleID  string `json:"article_id,omitempty"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty"` // hash of the exact prompt text used

	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`

	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`

	Response string `json:"response"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	DocumentID string
	ArticleID  string

	PromptKey  string
	PromptHash string

	// Pointer to distinguish "not set" from "set to 0"
	Temperature *float64

	// Err is the transport error, when the call never produced a result.
	Err error
}

// FromChatResult creates a Call from a ChatResult. A nil result is recorded
// as a failed call when opts.Err is set and skipped otherwise.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil && opts.Err == nil {
		return nil
	}

	call := &Call{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		DocumentID:  opts.DocumentID,
		ArticleID:   opts.ArticleID,
		PromptKey:   opts.PromptKey,
		PromptHash:  opts.PromptHash,
		Temperature: opts.Temperature,
	}

	if result != nil {
		call.LatencyMs = int(result.ExecutionTime.Milliseconds())
		call.Provider = result.Provider
		call.Model = result.ModelUsed
		call.InputTokens = result.PromptTokens
		call.OutputTokens = result.CompletionTokens
		call.CostUSD = result.CostUSD
		call.Response = result.Content
		call.Success = result.Success
		if !result.Success {
			call.Error = result.ErrorMessage
		}
	}
	if opts.Err != nil {
		call.Success = false
		call.Error = opts.Err.Error()
	}
	return call
}

// ToMap converts the Call to column values for the llm_calls table.
func (c *Call) ToMap() map[string]any {
	m := map[string]any{
		"id":            c.ID,
		"timestamp":     c.Timestamp,
		"latency_ms":    c.LatencyMs,
		"prompt_key":    c.PromptKey,
		"provider":      c.Provider,
		"model":         c.Model,
		"input_tokens":  c.InputTokens,
		"output_tokens": c.OutputTokens,
		"cost_usd":      c.CostUSD,
		"response":      c.Response,
		"success":       c.Success,
	}

	if c.DocumentID != "" {
		m["document_id"] = c.DocumentID
	}
	if c.ArticleID != "" {
		m["article_id"] = c.ArticleID
	}
	if c.PromptHash != "" {
		m["prompt_hash"] = c.PromptHash
	}
	if c.Temperature != nil {
		m["temperature"] = *c.Temperature
	}
	if c.Error != "" {
		m["error"] = c.Error
	}
	return m
}
