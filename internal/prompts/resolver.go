package prompts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Resolver resolves prompts with document-level overrides.
type Resolver struct {
	store    Store
	embedded map[string]EmbeddedPrompt
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewResolver creates a new prompt resolver. store may be nil.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    store,
		embedded: make(map[string]EmbeddedPrompt),
		logger:   logger,
	}
}

// Register registers an embedded prompt.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}
	if prompt.Variables == nil {
		prompt.Variables = ExtractVariables(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key, "vars", prompt.Variables)
}

// Resolve returns the override for documentID if one exists, otherwise the
// embedded default.
func (r *Resolver) Resolve(ctx context.Context, key, documentID string) (*ResolvedPrompt, error) {
	if documentID != "" && r.store != nil {
		override, err := r.store.GetOverride(ctx, documentID, key)
		if err != nil {
			r.logger.Warn("failed to check prompt override", "key", key, "document_id", documentID, "error", err)
		} else if override != nil {
			return &ResolvedPrompt{
				Key:        key,
				Text:       override.Text,
				Variables:  ExtractVariables(override.Text),
				IsOverride: true,
				Hash:       HashText(override.Text),
			}, nil
		}
	}

	r.mu.RLock()
	embedded, ok := r.embedded[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}

	return &ResolvedPrompt{
		Key:       key,
		Text:      embedded.Text,
		Variables: embedded.Variables,
		Hash:      embedded.Hash,
	}, nil
}

// GetEmbedded returns the embedded default for a key.
func (r *Resolver) GetEmbedded(key string) (*EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return &p, ok
}

// AllEmbedded returns all registered embedded prompts sorted by key.
func (r *Resolver) AllEmbedded() []EmbeddedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// SyncAll writes every registered embedded prompt to the store.
func (r *Resolver) SyncAll(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("store not configured")
	}

	prompts := r.AllEmbedded()
	for _, p := range prompts {
		if err := r.store.SyncPrompt(ctx, p); err != nil {
			return fmt.Errorf("failed to sync prompt %s: %w", p.Key, err)
		}
	}

	r.logger.Info("synced all prompts to store", "count", len(prompts))
	return nil
}
