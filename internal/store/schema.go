package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the vec0
// virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- Crawled documents and their structural forest
CREATE TABLE IF NOT EXISTS documents (
    document_id TEXT PRIMARY KEY,
    title TEXT,
    status TEXT,
    effective_date TEXT,
    expired_date TEXT,
    relationship JSON,
    preamble TEXT,
    forest JSON,
    chunk_mode TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Flattened articles; rid keys the vector table
CREATE TABLE IF NOT EXISTS articles (
    rid INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
    node_id TEXT,
    ordinal INTEGER NOT NULL,
    label TEXT,
    title TEXT,
    chapter TEXT,
    section TEXT,
    content TEXT NOT NULL,
    clauses JSON,
    relations JSON,
    payload JSON,
    state TEXT,
    attempts INTEGER DEFAULT 0
);

-- Article-to-article relationship graph. Targets may point at documents
-- that were never ingested, so there is no foreign key on them.
CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
    source_article_id TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    target_article_id TEXT NOT NULL,
    scope TEXT NOT NULL,
    UNIQUE(source_article_id, relation_type, target_article_id)
);

-- Article embeddings via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_articles USING vec0(
    article_rid INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- LLM call log
CREATE TABLE IF NOT EXISTS llm_calls (
    id TEXT PRIMARY KEY,
    timestamp DATETIME NOT NULL,
    latency_ms INTEGER,
    document_id TEXT,
    article_id TEXT,
    prompt_key TEXT NOT NULL,
    prompt_hash TEXT,
    provider TEXT,
    model TEXT,
    temperature REAL,
    input_tokens INTEGER DEFAULT 0,
    output_tokens INTEGER DEFAULT 0,
    cost_usd REAL DEFAULT 0,
    response TEXT,
    success INTEGER NOT NULL,
    error TEXT
);

-- Prompt mirror and per-document overrides
CREATE TABLE IF NOT EXISTS prompts (
    key TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    description TEXT,
    variables JSON,
    hash TEXT NOT NULL,
    synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS prompt_overrides (
    document_id TEXT NOT NULL,
    prompt_key TEXT NOT NULL,
    text TEXT NOT NULL,
    note TEXT,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (document_id, prompt_key)
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_articles_document ON articles(document_id);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_article_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_article_id);
CREATE INDEX IF NOT EXISTS idx_edges_document ON edges(document_id);
CREATE INDEX IF NOT EXISTS idx_llm_calls_document ON llm_calls(document_id);
CREATE INDEX IF NOT EXISTS idx_llm_calls_prompt ON llm_calls(prompt_key);
`, embeddingDim)
}
