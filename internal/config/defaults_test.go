package config

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultEntries(t *testing.T) {
	entries := DefaultEntries()

	if len(entries) == 0 {
		t.Fatal("DefaultEntries() returned empty slice")
	}

	requiredKeys := []string{
		"llm_providers.openrouter.type",
		"llm_providers.openai.api_key",
		"embedding.dimensions",
		"defaults.llm_provider",
		"defaults.chunk_provider",
		"resolver.concurrency",
		"resolver.max_attempts",
		"chunker.mode",
		"store.embedding_dim",
	}

	keys := make(map[string]bool)
	for _, e := range entries {
		if keys[e.Key] {
			t.Errorf("DefaultEntries() duplicates key %s", e.Key)
		}
		keys[e.Key] = true
		if err := ValidateKey(e.Key); err != nil {
			t.Errorf("DefaultEntries() key %q: %v", e.Key, err)
		}
		if e.Description == "" {
			t.Errorf("DefaultEntries() key %q has no description", e.Key)
		}
	}

	for _, key := range requiredKeys {
		if !keys[key] {
			t.Errorf("DefaultEntries() missing required key: %s", key)
		}
	}
}

func TestGetDefault(t *testing.T) {
	t.Run("existing_key", func(t *testing.T) {
		entry := GetDefault("chunker.mode")
		if entry == nil {
			t.Fatal("GetDefault() returned nil for existing key")
		}
		if entry.Value != ChunkModePrefix {
			t.Errorf("GetDefault() Value = %v, want %q", entry.Value, ChunkModePrefix)
		}
	})

	t.Run("non_existent_key", func(t *testing.T) {
		entry := GetDefault("does.not.exist")
		if entry != nil {
			t.Errorf("GetDefault() = %v, want nil for non-existent key", entry)
		}
	})
}

func TestResetToDefault(t *testing.T) {
	t.Run("resets_to_default", func(t *testing.T) {
		store := memStore{}
		ctx := context.Background()

		store.Set(ctx, "resolver.max_attempts", float64(9), "")

		if err := ResetToDefault(ctx, store, "resolver.max_attempts"); err != nil {
			t.Fatalf("ResetToDefault() error = %v", err)
		}

		entry, _ := store.Get(ctx, "resolver.max_attempts")
		if entry.Value != 3 {
			t.Errorf("ResetToDefault() Value = %v, want 3", entry.Value)
		}
	})

	t.Run("error_for_unknown_key", func(t *testing.T) {
		err := ResetToDefault(context.Background(), memStore{}, "does.not.exist")
		if err == nil {
			t.Fatal("ResetToDefault() should error for unknown key")
		}
		if !errors.Is(err, ErrNoDefault) {
			t.Errorf("ResetToDefault() error should wrap ErrNoDefault, got %v", err)
		}
	})
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"chunker.mode", false},
		{"llm_providers.open-router.model", false},
		{"", true},
		{".leading", true},
		{"trailing.", true},
		{"has space", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}
