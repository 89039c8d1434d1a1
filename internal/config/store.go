package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store persists config overrides. Entries in the store win over the
// config file and the environment once applied with Manager.Apply.
type Store interface {
	// Get returns a single config entry by key, or nil if unset.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set creates or updates a config entry.
	Set(ctx context.Context, key string, value any, description string) error

	// GetAll returns all config entries.
	GetAll(ctx context.Context) (map[string]Entry, error)

	// GetByPrefix returns config entries matching the prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error)

	// Delete removes a config entry.
	Delete(ctx context.Context, key string) error
}

// Entry represents a single configuration entry.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// SQLStore implements Store over the config_entries table of the vbpl
// database.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a config store over db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get returns a single config entry by key.
func (s *SQLStore) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, description FROM config_entries WHERE key = ?`, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return e, nil
}

// Set creates or updates a config entry. Values are stored as JSON.
func (s *SQLStore) Set(ctx context.Context, key string, value any, description string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config_entries (key, value, description, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			description = CASE WHEN excluded.description = '' THEN config_entries.description ELSE excluded.description END,
			updated_at = CURRENT_TIMESTAMP`,
		key, string(valueJSON), description)
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// GetAll returns all config entries.
func (s *SQLStore) GetAll(ctx context.Context) (map[string]Entry, error) {
	return s.query(ctx, `SELECT key, value, description FROM config_entries ORDER BY key`)
}

// GetByPrefix returns config entries matching the prefix.
func (s *SQLStore) GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return s.query(ctx,
		`SELECT key, value, description FROM config_entries WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		escaped+"%")
}

// Delete removes a config entry by key. Deleting a missing key is a no-op.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM config_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	result := make(map[string]Entry)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result[e.Key] = *e
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc rowScanner) (*Entry, error) {
	var (
		e     Entry
		raw   string
		descr sql.NullString
	)
	if err := sc.Scan(&e.Key, &raw, &descr); err != nil {
		return nil, err
	}
	e.Description = descr.String

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Debug("config value is not valid JSON, using as raw string",
			"key", e.Key,
			"error", err)
		e.Value = raw
	} else {
		e.Value = parsed
	}
	return &e, nil
}

var _ Store = (*SQLStore)(nil)
