// Package pipeline runs a crawled document through normalization,
// segmentation, flattening, relationship resolution, persistence and
// embedding. Stages are registered in a Registry and executed in
// dependency order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/vbpl/internal/flatten"
	"github.com/jackzampolin/vbpl/internal/ident"
	"github.com/jackzampolin/vbpl/internal/index"
	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/metrics"
	"github.com/jackzampolin/vbpl/internal/relation"
	"github.com/jackzampolin/vbpl/internal/segment"
	"github.com/jackzampolin/vbpl/internal/store"
	"github.com/jackzampolin/vbpl/internal/textnorm"
)

// Stage names.
const (
	StageNormalize = "normalize"
	StageSegment   = "segment"
	StageAssignIDs = "assign-ids"
	StageFlatten   = "flatten"
	StageResolve   = "resolve"
	StageStore     = "store"
	StageEmbed     = "embed"
)

// Chunk modes.
const (
	ModePrefix = "prefix"
	ModeLLM    = "llm"
)

// ErrInvalidDocument is returned for documents without an id.
var ErrInvalidDocument = errors.New("invalid document")

// Chunker is the LLM segmentation path.
type Chunker interface {
	Chunk(ctx context.Context, documentID, text string) (segment.Document, error)
}

// DocumentSaver persists a processed document.
type DocumentSaver interface {
	SaveDocument(ctx context.Context, doc store.DocumentRecord, articles []store.ArticleRecord, edges []legal.Edge) error
}

// Indexer embeds articles.
type Indexer interface {
	Index(ctx context.Context, articles []legal.Article) (int, error)
}

// Options configures a Pipeline. Components left nil disable the stages
// that need them.
type Options struct {
	Segmenter *segment.Segmenter
	Chunker   Chunker
	ChunkMode string // ModePrefix (default) or ModeLLM
	Resolver  *relation.Resolver
	Saver     DocumentSaver
	Indexer   Indexer
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Pipeline processes documents.
type Pipeline struct {
	opts     Options
	registry *Registry
	logger   *slog.Logger
}

// New creates a Pipeline with the standard stages registered.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Segmenter == nil {
		opts.Segmenter = segment.New(segment.Options{Logger: opts.Logger})
	}
	if opts.ChunkMode == "" {
		opts.ChunkMode = ModePrefix
	}
	p := &Pipeline{opts: opts, registry: NewRegistry(), logger: opts.Logger}
	for _, s := range standardStages() {
		// names are distinct constants
		_ = p.registry.Register(s)
	}
	return p
}

// Registry exposes the stage registry.
func (p *Pipeline) Registry() *Registry { return p.registry }

// RunOptions controls one Process call.
type RunOptions struct {
	// Until stops after the named stage and its dependencies. Empty runs
	// every stage.
	Until string
}

// Process runs doc through the pipeline. On error the returned State holds
// whatever the completed stages produced.
func (p *Pipeline) Process(ctx context.Context, doc legal.CrawledDocument, ro RunOptions) (*State, error) {
	st := &State{Document: doc}
	if doc.DocumentInfo.DocumentID == "" {
		return st, fmt.Errorf("%w: missing document_id", ErrInvalidDocument)
	}

	var stages []Stage
	var err error
	if ro.Until != "" {
		stages, err = p.registry.Through(ro.Until)
	} else {
		stages, err = p.registry.GetOrdered()
	}
	if err != nil {
		return st, err
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		start := time.Now()
		if err := s.Run(ctx, p, st); err != nil {
			return st, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
		st.Completed = append(st.Completed, s.Name())
		p.logger.Debug("stage complete",
			"document_id", doc.DocumentInfo.DocumentID,
			"stage", s.Name(),
			"duration", time.Since(start))
	}
	return st, nil
}

func (p *Pipeline) skip(st *State, name string) {
	st.Skipped = append(st.Skipped, name)
	p.logger.Debug("stage skipped", "document_id", st.Info().DocumentID, "stage", name)
}

func standardStages() []Stage {
	return []Stage{
		stageFunc{
			name:        StageNormalize,
			description: "Clean whitespace, quotes and line structure of the raw text",
			run: func(_ *Pipeline, _ context.Context, st *State) error {
				st.Text = textnorm.Normalize(st.Document.TextContent)
				return nil
			},
		},
		stageFunc{
			name:        StageSegment,
			deps:        []string{StageNormalize},
			description: "Split text into chapters, sections, articles and clauses",
			run:         (*Pipeline).segment,
		},
		stageFunc{
			name:        StageAssignIDs,
			deps:        []string{StageSegment},
			description: "Synthesize hierarchical node ids",
			run: func(_ *Pipeline, _ context.Context, st *State) error {
				ident.Assign(st.Segmented.Forest)
				return nil
			},
		},
		stageFunc{
			name:        StageFlatten,
			deps:        []string{StageAssignIDs},
			description: "Emit one record per article with its chapter and section",
			run: func(_ *Pipeline, _ context.Context, st *State) error {
				st.Articles = flatten.Flatten(st.Info(), st.Segmented.Forest)
				return nil
			},
		},
		stageFunc{
			name:        StageResolve,
			deps:        []string{StageFlatten},
			description: "Classify each article's relationships with an LLM",
			run:         (*Pipeline).resolve,
		},
		stageFunc{
			name:        StageStore,
			deps:        []string{StageResolve},
			description: "Persist the document, articles and edges",
			run:         (*Pipeline).save,
		},
		stageFunc{
			name:        StageEmbed,
			deps:        []string{StageStore},
			description: "Embed articles for vector search",
			run:         (*Pipeline).embed,
		},
	}
}

func (p *Pipeline) segment(ctx context.Context, st *State) error {
	docID := st.Info().DocumentID
	st.ChunkMode = ModePrefix
	if p.opts.ChunkMode == ModeLLM && p.opts.Chunker != nil {
		doc, err := p.opts.Chunker.Chunk(ctx, docID, st.Text)
		switch {
		case err == nil:
			st.ChunkMode = ModeLLM
			st.Segmented = doc
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			p.opts.Metrics.ChunkFallback()
			p.logger.Warn("llm chunking failed, falling back to prefix segmentation",
				"document_id", docID, "error", err)
		}
	}
	if st.ChunkMode == ModePrefix {
		st.Segmented = p.opts.Segmenter.SegmentDocument(st.Text)
	}

	f := st.Segmented.Forest
	p.opts.Metrics.Document(st.ChunkMode, map[string]int{
		legal.KindChapter.String(): f.Count(legal.KindChapter),
		legal.KindSection.String(): f.Count(legal.KindSection),
		legal.KindArticle.String(): f.Count(legal.KindArticle),
		legal.KindClause.String():  f.Count(legal.KindClause),
	})
	return nil
}

func (p *Pipeline) resolve(ctx context.Context, st *State) error {
	if p.opts.Resolver == nil {
		p.skip(st, StageResolve)
		return nil
	}
	results, err := p.opts.Resolver.ResolveAll(ctx, st.Info(), st.Articles)
	st.Results = results
	if err != nil {
		return err
	}

	st.Edges = st.Edges[:0]
	for i := range results {
		st.Edges = append(st.Edges, results[i].Edges()...)
	}

	summary := relation.Summary(results)
	p.logger.Info("resolved relationships",
		"document_id", st.Info().DocumentID,
		"articles", len(results),
		"resolved", summary[relation.Resolved],
		"failed_empty", summary[relation.FailedEmpty],
		"edges", len(st.Edges))
	return nil
}

// records pairs each article with its resolution. Articles the resolver
// never saw are stored as PENDING with empty relations.
func (st *State) records() []store.ArticleRecord {
	byID := make(map[string]*relation.Result, len(st.Results))
	for i := range st.Results {
		byID[st.Results[i].Article.ID] = &st.Results[i]
	}

	out := make([]store.ArticleRecord, 0, len(st.Articles))
	for _, a := range st.Articles {
		res, ok := byID[a.ID]
		if !ok {
			pending := relation.Result{Article: a, State: relation.Pending}
			pending.Relations.Normalize()
			res = &pending
		}
		out = append(out, store.ArticleRecord{
			Article:   a,
			Relations: res.Relations,
			State:     res.State.String(),
			Attempts:  res.Attempts,
			Payload:   index.Payload(st.Info(), *res),
		})
	}
	return out
}

func (p *Pipeline) save(ctx context.Context, st *State) error {
	if p.opts.Saver == nil {
		p.skip(st, StageStore)
		return nil
	}
	rec := store.DocumentRecord{
		Info:      st.Info(),
		Preamble:  st.Segmented.Preamble,
		Forest:    st.Segmented.Forest,
		ChunkMode: st.ChunkMode,
	}
	return p.opts.Saver.SaveDocument(ctx, rec, st.records(), st.Edges)
}

func (p *Pipeline) embed(ctx context.Context, st *State) error {
	if p.opts.Indexer == nil {
		p.skip(st, StageEmbed)
		return nil
	}
	n, err := p.opts.Indexer.Index(ctx, st.Articles)
	st.Embedded = n
	return err
}
