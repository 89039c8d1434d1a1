// Package store persists processed documents, articles, relationship edges,
// embeddings and LLM call logs in SQLite with the sqlite-vec extension.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/avast/retry-go/v4"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jackzampolin/vbpl/internal/legal"
)

func init() {
	sqlite_vec.Auto()
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DocumentRecord is a row in the documents table.
type DocumentRecord struct {
	Info      legal.DocumentInfo `json:"document_info"`
	Preamble  string             `json:"preamble,omitempty"`
	Forest    legal.Forest       `json:"forest"`
	ChunkMode string             `json:"chunk_mode"`
	UpdatedAt string             `json:"updated_at,omitempty"`
}

// ArticleRecord is a row in the articles table: the flattened article plus
// its resolution outcome and the index payload built from it.
type ArticleRecord struct {
	legal.Article
	Relations legal.Relations `json:"relations"`
	State     string          `json:"state"`
	Attempts  int             `json:"attempts"`
	Payload   map[string]any  `json:"payload,omitempty"`
}

// SearchResult is one hit from VectorSearch.
type SearchResult struct {
	ArticleID  string  `json:"article_id"`
	DocumentID string  `json:"document_id"`
	Label      string  `json:"label"`
	Title      string  `json:"title"`
	Chapter    *string `json:"chapter"`
	Section    *string `json:"section"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// ArticleRelations groups the edges touching one article.
type ArticleRelations struct {
	ArticleID string       `json:"article_id"`
	Outgoing  []legal.Edge `json:"outgoing"`
	Incoming  []legal.Edge `json:"incoming"`
}

// Stats summarizes table sizes.
type Stats struct {
	Documents  int `json:"documents"`
	Articles   int `json:"articles"`
	Edges      int `json:"edges"`
	Embeddings int `json:"embeddings"`
	LLMCalls   int `json:"llm_calls"`
}

// Store wraps the SQLite database.
type Store struct {
	db           *sql.DB
	embeddingDim int
	logger       *slog.Logger
}

// New opens (or creates) a SQLite database at dbPath and initializes the
// schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim)
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Another process may hold the write lock briefly during WAL checkpoint.
	err = retry.Do(db.Ping,
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim, logger: logger}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Documents ---

// SaveDocument writes a document, its articles and its edges in one
// transaction, replacing whatever was stored for the same document before.
func (s *Store) SaveDocument(ctx context.Context, doc DocumentRecord, articles []ArticleRecord, edges []legal.Edge) error {
	docID := doc.Info.DocumentID
	if docID == "" {
		return fmt.Errorf("document id is required")
	}
	rel, err := marshalJSON(doc.Info.Relationship)
	if err != nil {
		return fmt.Errorf("encoding relationship: %w", err)
	}
	forest, err := marshalJSON(doc.Forest)
	if err != nil {
		return fmt.Errorf("encoding forest: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		// vec0 tables do not take part in foreign key cascades.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_articles WHERE article_rid IN
				(SELECT rid FROM articles WHERE document_id = ?)`, docID); err != nil {
			return fmt.Errorf("clearing embeddings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM edges WHERE document_id = ?", docID); err != nil {
			return fmt.Errorf("clearing edges: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE document_id = ?", docID); err != nil {
			return fmt.Errorf("clearing articles: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (document_id, title, status, effective_date, expired_date,
				relationship, preamble, forest, chunk_mode)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(document_id) DO UPDATE SET
				title = excluded.title,
				status = excluded.status,
				effective_date = excluded.effective_date,
				expired_date = excluded.expired_date,
				relationship = excluded.relationship,
				preamble = excluded.preamble,
				forest = excluded.forest,
				chunk_mode = excluded.chunk_mode,
				updated_at = CURRENT_TIMESTAMP
		`, docID, doc.Info.DocumentTitle, doc.Info.DocumentStatus, doc.Info.EffectiveDate,
			doc.Info.ExpiredDate, rel, doc.Preamble, forest, doc.ChunkMode); err != nil {
			return fmt.Errorf("upserting document: %w", err)
		}

		if err := insertArticles(ctx, tx, docID, articles); err != nil {
			return err
		}
		return insertEdges(ctx, tx, docID, edges)
	})
}

func insertArticles(ctx context.Context, tx *sql.Tx, docID string, articles []ArticleRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (id, document_id, node_id, ordinal, label, title, chapter, section,
			content, clauses, relations, payload, state, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing article insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		clauses, err := marshalJSON(a.Clauses)
		if err != nil {
			return fmt.Errorf("encoding clauses for %s: %w", a.ID, err)
		}
		rel := a.Relations
		rel.Normalize()
		relations, err := marshalJSON(rel)
		if err != nil {
			return fmt.Errorf("encoding relations for %s: %w", a.ID, err)
		}
		payload, err := marshalJSON(a.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload for %s: %w", a.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, a.ID, docID, a.NodeID, a.Ordinal, a.Label, a.Title,
			a.Chapter, a.Section, a.Content, clauses, relations, payload, a.State, a.Attempts); err != nil {
			return fmt.Errorf("inserting article %s: %w", a.ID, err)
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, docID string, edges []legal.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO edges (document_id, source_article_id, relation_type, target_article_id, scope)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing edge insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, docID, e.SourceArticleID, e.Type.EdgeLabel(),
			e.TargetArticleID, e.Scope.String()); err != nil {
			return fmt.Errorf("inserting edge %s->%s: %w", e.SourceArticleID, e.TargetArticleID, err)
		}
	}
	return nil
}

// GetDocument loads a document row.
func (s *Store) GetDocument(ctx context.Context, documentID string) (*DocumentRecord, error) {
	var (
		d                 DocumentRecord
		rel, forest       sql.NullString
		preamble, mode    sql.NullString
		title, status     sql.NullString
		effective, expiry sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, title, status, effective_date, expired_date, relationship,
			preamble, forest, chunk_mode, updated_at
		FROM documents WHERE document_id = ?`, documentID).Scan(
		&d.Info.DocumentID, &title, &status, &effective, &expiry, &rel,
		&preamble, &forest, &mode, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	d.Info.DocumentTitle = title.String
	d.Info.DocumentStatus = status.String
	d.Info.EffectiveDate = effective.String
	d.Info.ExpiredDate = expiry.String
	d.Preamble = preamble.String
	d.ChunkMode = mode.String
	if err := unmarshalJSON(rel, &d.Info.Relationship); err != nil {
		return nil, fmt.Errorf("decoding relationship: %w", err)
	}
	if err := unmarshalJSON(forest, &d.Forest); err != nil {
		return nil, fmt.Errorf("decoding forest: %w", err)
	}
	return &d, nil
}

// ListDocuments returns all documents without their forests.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, COALESCE(title, ''), COALESCE(status, ''), COALESCE(chunk_mode, ''), updated_at
		FROM documents ORDER BY document_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentRecord
	for rows.Next() {
		var d DocumentRecord
		if err := rows.Scan(&d.Info.DocumentID, &d.Info.DocumentTitle, &d.Info.DocumentStatus,
			&d.ChunkMode, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document with its articles, edges and embeddings.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_articles WHERE article_rid IN
				(SELECT rid FROM articles WHERE document_id = ?)`, documentID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE document_id = ?", documentID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("document %s: %w", documentID, ErrNotFound)
		}
		return nil
	})
}

// --- Articles ---

const articleColumns = `id, document_id, COALESCE(node_id, ''), ordinal, COALESCE(label, ''),
	COALESCE(title, ''), chapter, section, content, clauses, relations, payload,
	COALESCE(state, ''), attempts`

// GetArticle loads one article by its "{doc}_{ordinal}" id.
func (s *Store) GetArticle(ctx context.Context, id string) (*ArticleRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return a, err
}

// ListArticles returns a document's articles in ordinal order.
func (s *Store) ListArticles(ctx context.Context, documentID string) ([]ArticleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE document_id = ? ORDER BY ordinal", documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArticleRecord
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(sc scanner) (*ArticleRecord, error) {
	var (
		a                           ArticleRecord
		chapter, section            sql.NullString
		clauses, relations, payload sql.NullString
	)
	if err := sc.Scan(&a.ID, &a.DocumentID, &a.NodeID, &a.Ordinal, &a.Label, &a.Title,
		&chapter, &section, &a.Content, &clauses, &relations, &payload, &a.State, &a.Attempts); err != nil {
		return nil, err
	}
	if chapter.Valid {
		a.Chapter = &chapter.String
	}
	if section.Valid {
		a.Section = &section.String
	}
	if err := unmarshalJSON(clauses, &a.Clauses); err != nil {
		return nil, fmt.Errorf("decoding clauses: %w", err)
	}
	if err := unmarshalJSON(relations, &a.Relations); err != nil {
		return nil, fmt.Errorf("decoding relations: %w", err)
	}
	if err := unmarshalJSON(payload, &a.Payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	a.Relations.Normalize()
	return &a, nil
}

// --- Edges ---

// Relationships returns the edges leaving and entering an article.
func (s *Store) Relationships(ctx context.Context, articleID string) (*ArticleRelations, error) {
	out := &ArticleRelations{ArticleID: articleID, Outgoing: []legal.Edge{}, Incoming: []legal.Edge{}}

	var err error
	out.Outgoing, err = s.queryEdges(ctx, "source_article_id = ?", articleID)
	if err != nil {
		return nil, fmt.Errorf("outgoing edges: %w", err)
	}
	out.Incoming, err = s.queryEdges(ctx, "target_article_id = ?", articleID)
	if err != nil {
		return nil, fmt.Errorf("incoming edges: %w", err)
	}
	return out, nil
}

// DocumentEdges returns all edges produced while processing a document.
func (s *Store) DocumentEdges(ctx context.Context, documentID string) ([]legal.Edge, error) {
	return s.queryEdges(ctx, "document_id = ?", documentID)
}

func (s *Store) queryEdges(ctx context.Context, where string, arg any) ([]legal.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_article_id, relation_type, target_article_id, scope
		FROM edges WHERE `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := []legal.Edge{}
	for rows.Next() {
		var (
			e              legal.Edge
			relType, scope string
		)
		if err := rows.Scan(&e.SourceArticleID, &relType, &e.TargetArticleID, &scope); err != nil {
			return nil, err
		}
		if err := e.Type.UnmarshalText([]byte(relType)); err != nil {
			return nil, err
		}
		if err := e.Scope.UnmarshalText([]byte(scope)); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// --- Embeddings ---

// InsertEmbedding stores a vector embedding for an article.
func (s *Store) InsertEmbedding(ctx context.Context, articleID string, embedding []float32) error {
	if len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding has %d dims, store expects %d", len(embedding), s.embeddingDim)
	}
	var rid int64
	err := s.db.QueryRowContext(ctx, "SELECT rid FROM articles WHERE id = ?", articleID).Scan(&rid)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("article %s: %w", articleID, ErrNotFound)
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_articles (article_rid, embedding) VALUES (?, ?)",
		rid, serializeFloat32(embedding))
	return err
}

// VectorSearch performs a KNN search returning the top-k nearest articles.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.distance, a.id, a.document_id, COALESCE(a.label, ''), COALESCE(a.title, ''),
			a.chapter, a.section, a.content
		FROM vec_articles v
		JOIN articles a ON a.rid = v.article_rid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r                SearchResult
			distance         float64
			chapter, section sql.NullString
		)
		if err := rows.Scan(&distance, &r.ArticleID, &r.DocumentID, &r.Label, &r.Title,
			&chapter, &section, &r.Content); err != nil {
			return nil, err
		}
		if chapter.Valid {
			r.Chapter = &chapter.String
		}
		if section.Valid {
			r.Section = &section.String
		}
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Stats ---

// Stats counts rows in the main tables.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM articles),
			(SELECT COUNT(*) FROM edges),
			(SELECT COUNT(*) FROM vec_articles),
			(SELECT COUNT(*) FROM llm_calls)
	`).Scan(&st.Documents, &st.Articles, &st.Edges, &st.Embeddings, &st.LLMCalls)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
