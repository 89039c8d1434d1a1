package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/providers"
)

// DefaultBatchSize is the number of articles embedded per request.
const DefaultBatchSize = 32

// VectorWriter stores one article vector. *store.Store implements it.
type VectorWriter interface {
	InsertEmbedding(ctx context.Context, articleID string, embedding []float32) error
}

// Indexer embeds article content and writes the vectors.
type Indexer struct {
	embedder  providers.Embedder
	writer    VectorWriter
	batchSize int
	logger    *slog.Logger
}

// NewIndexer creates an Indexer. batchSize <= 0 uses DefaultBatchSize.
func NewIndexer(embedder providers.Embedder, writer VectorWriter, batchSize int, logger *slog.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{embedder: embedder, writer: writer, batchSize: batchSize, logger: logger}
}

// Text is the string embedded for an article: its chapter and section
// headings followed by the article content.
func Text(a legal.Article) string {
	text := a.Content
	if a.Section != nil {
		text = *a.Section + "\n" + text
	}
	if a.Chapter != nil {
		text = *a.Chapter + "\n" + text
	}
	return text
}

// Index embeds articles in batches and writes one vector per article. It
// returns the number of vectors written.
func (ix *Indexer) Index(ctx context.Context, articles []legal.Article) (int, error) {
	written := 0
	for lo := 0; lo < len(articles); lo += ix.batchSize {
		hi := min(lo+ix.batchSize, len(articles))
		batch := articles[lo:hi]

		texts := make([]string, len(batch))
		for i, a := range batch {
			texts[i] = Text(a)
		}
		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("embedding articles %d-%d: %w", lo, hi-1, err)
		}
		if len(vecs) != len(batch) {
			return written, fmt.Errorf("embedder %s returned %d vectors for %d articles", ix.embedder.Name(), len(vecs), len(batch))
		}
		for i, a := range batch {
			if err := ix.writer.InsertEmbedding(ctx, a.ID, vecs[i]); err != nil {
				return written, fmt.Errorf("storing embedding for %s: %w", a.ID, err)
			}
			written++
		}
		ix.logger.Debug("embedded batch", "from", lo, "to", hi, "embedder", ix.embedder.Name())
	}
	return written, nil
}
