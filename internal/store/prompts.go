package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackzampolin/vbpl/internal/prompts"
)

var _ prompts.Store = (*Store)(nil)

// SyncPrompt mirrors an embedded prompt into the prompts table.
func (s *Store) SyncPrompt(ctx context.Context, p prompts.EmbeddedPrompt) error {
	vars, err := marshalJSON(p.Variables)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prompts (key, text, description, variables, hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			text = excluded.text,
			description = excluded.description,
			variables = excluded.variables,
			hash = excluded.hash,
			synced_at = CURRENT_TIMESTAMP
		WHERE prompts.hash != excluded.hash
	`, p.Key, p.Text, p.Description, vars, p.Hash)
	if err != nil {
		return fmt.Errorf("syncing prompt %s: %w", p.Key, err)
	}
	return nil
}

// GetOverride returns the override for (documentID, key), or nil when none
// exists.
func (s *Store) GetOverride(ctx context.Context, documentID, key string) (*prompts.Override, error) {
	o := prompts.Override{DocumentID: documentID, PromptKey: key}
	var note sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT text, note, updated_at FROM prompt_overrides
		WHERE document_id = ? AND prompt_key = ?`, documentID, key).Scan(&o.Text, &note, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Note = note.String
	return &o, nil
}

// SetOverride creates or replaces a per-document prompt override.
func (s *Store) SetOverride(ctx context.Context, o prompts.Override) error {
	if o.DocumentID == "" || o.PromptKey == "" {
		return fmt.Errorf("override needs document id and prompt key")
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO prompt_overrides (document_id, prompt_key, text, note, updated_at)
		VALUES (?, ?, ?, ?, ?)`, o.DocumentID, o.PromptKey, o.Text, o.Note, o.UpdatedAt)
	return err
}

// DeleteOverride removes an override. Missing rows are not an error.
func (s *Store) DeleteOverride(ctx context.Context, documentID, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM prompt_overrides WHERE document_id = ? AND prompt_key = ?", documentID, key)
	return err
}

// ListOverrides returns every override, optionally limited to one document.
func (s *Store) ListOverrides(ctx context.Context, documentID string) ([]prompts.Override, error) {
	q := "SELECT document_id, prompt_key, text, COALESCE(note, ''), updated_at FROM prompt_overrides"
	var args []any
	if documentID != "" {
		q += " WHERE document_id = ?"
		args = append(args, documentID)
	}
	q += " ORDER BY document_id, prompt_key"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []prompts.Override
	for rows.Next() {
		var o prompts.Override
		if err := rows.Scan(&o.DocumentID, &o.PromptKey, &o.Text, &o.Note, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
