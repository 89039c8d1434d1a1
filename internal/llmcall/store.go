package llmcall

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store provides access to LLM call records.
type Store struct {
	db *sql.DB
}

// NewStore creates a new call store over the database returned by
// store.Store.DB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	DocumentID string
	ArticleID  string
	PromptKey  string
	Provider   string
	Model      string
	After      *time.Time
	Before     *time.Time
	Success    *bool
	Limit      int
	Offset     int
}

const callColumns = `id, timestamp, COALESCE(latency_ms, 0), COALESCE(document_id, ''),
	COALESCE(article_id, ''), prompt_key, COALESCE(prompt_hash, ''), COALESCE(provider, ''),
	COALESCE(model, ''), temperature, input_tokens, output_tokens, cost_usd,
	COALESCE(response, ''), success, COALESCE(error, '')`

// Get retrieves a single LLM call by ID. Returns nil when not found.
func (s *Store) Get(ctx context.Context, id string) (*Call, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+callColumns+" FROM llm_calls WHERE id = ?", id)
	c, err := scanCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return c, nil
}

// List retrieves LLM calls matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter QueryFilter) ([]Call, error) {
	var (
		conditions []string
		args       []any
	)
	eq := func(col, v string) {
		if v != "" {
			conditions = append(conditions, col+" = ?")
			args = append(args, v)
		}
	}
	eq("document_id", filter.DocumentID)
	eq("article_id", filter.ArticleID)
	eq("prompt_key", filter.PromptKey)
	eq("provider", filter.Provider)
	eq("model", filter.Model)
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filter.Success)
	}
	if filter.After != nil {
		conditions = append(conditions, "timestamp > ?")
		args = append(args, *filter.After)
	}
	if filter.Before != nil {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, *filter.Before)
	}

	query := "SELECT " + callColumns + " FROM llm_calls"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, *c)
	}
	return calls, rows.Err()
}

// CountByPromptKey returns call counts grouped by prompt key, optionally
// limited to one document.
func (s *Store) CountByPromptKey(ctx context.Context, documentID string) (map[string]int, error) {
	query := "SELECT prompt_key, COUNT(*) FROM llm_calls"
	var args []any
	if documentID != "" {
		query += " WHERE document_id = ?"
		args = append(args, documentID)
	}
	query += " GROUP BY prompt_key"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(sc scanner) (*Call, error) {
	var (
		c    Call
		temp sql.NullFloat64
	)
	if err := sc.Scan(&c.ID, &c.Timestamp, &c.LatencyMs, &c.DocumentID, &c.ArticleID,
		&c.PromptKey, &c.PromptHash, &c.Provider, &c.Model, &temp, &c.InputTokens,
		&c.OutputTokens, &c.CostUSD, &c.Response, &c.Success, &c.Error); err != nil {
		return nil, err
	}
	if temp.Valid {
		c.Temperature = &temp.Float64
	}
	return &c, nil
}
