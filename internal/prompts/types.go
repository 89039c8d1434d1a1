// Package prompts manages the LLM prompts with embedded defaults and
// per-document overrides.
//
// Embedded .tmpl files are the source of truth for defaults. A Store, when
// configured, mirrors them for traceability and holds overrides keyed by
// document id.
//
// Resolution order for a document:
//  1. Document override (if one exists)
//  2. Embedded default
package prompts

import (
	"context"
	"time"
)

// EmbeddedPrompt is a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: relation.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 of Text
}

// Override is a per-document prompt customization.
type Override struct {
	DocumentID string    `json:"document_id"`
	PromptKey  string    `json:"prompt_key"`
	Text       string    `json:"text"`
	Note       string    `json:"note,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ResolvedPrompt is the prompt text chosen for one document.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Hash       string   `json:"hash"` // recorded on LLM calls
}

// Store persists synced prompts and document overrides.
type Store interface {
	SyncPrompt(ctx context.Context, p EmbeddedPrompt) error
	// GetOverride returns nil and no error when no override exists.
	GetOverride(ctx context.Context, documentID, key string) (*Override, error)
}
