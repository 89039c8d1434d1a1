package svcctx

import (
	"fmt"

	"github.com/jackzampolin/vbpl/internal/config"
	"github.com/jackzampolin/vbpl/internal/index"
	"github.com/jackzampolin/vbpl/internal/llmchunk"
	"github.com/jackzampolin/vbpl/internal/pipeline"
	"github.com/jackzampolin/vbpl/internal/relation"
)

// PipelineOptions select the optional stages of a pipeline.
type PipelineOptions struct {
	ChunkMode string // Empty uses chunker.mode from config
	Resolve   bool
	Save      bool
	Embed     bool
}

// NewPipeline builds a pipeline from the current config and provider
// registry. Requested stages whose provider is unavailable are an error.
func (s *Services) NewPipeline(opts PipelineOptions) (*pipeline.Pipeline, error) {
	cfg := s.Config.Get()
	logger := s.Logger

	popts := pipeline.Options{
		ChunkMode: opts.ChunkMode,
		Metrics:   s.Metrics,
		Logger:    logger,
	}
	if popts.ChunkMode == "" {
		popts.ChunkMode = cfg.Chunker.Mode
	}

	if popts.ChunkMode == config.ChunkModeLLM {
		client, err := s.Registry.GetLLM(cfg.Defaults.ChunkProvider)
		if err != nil {
			return nil, fmt.Errorf("chunk provider %q: %w", cfg.Defaults.ChunkProvider, err)
		}
		popts.Chunker = llmchunk.New(client, llmchunk.Config{
			Temperature: cfg.Chunker.Temperature,
			Prompts:     s.Prompts,
			Recorder:    s.Recorder,
			Metrics:     s.Metrics,
			Logger:      logger,
		})
	}

	if opts.Resolve {
		client, err := s.Registry.GetLLM(cfg.Defaults.LLMProvider)
		if err != nil {
			return nil, fmt.Errorf("llm provider %q: %w", cfg.Defaults.LLMProvider, err)
		}
		classifier := relation.NewLLMClassifier(client, relation.ClassifierConfig{
			Temperature: cfg.Resolver.Temperature,
			Prompts:     s.Prompts,
			Recorder:    s.Recorder,
			Metrics:     s.Metrics,
			Logger:      logger,
		})
		popts.Resolver = relation.New(classifier, relation.Config{
			Concurrency: cfg.Resolver.Concurrency,
			MaxAttempts: cfg.Resolver.MaxAttempts,
			CallTimeout: cfg.Resolver.CallTimeout(),
			RetryDelay:  cfg.Resolver.RetryDelay(),
		}, relation.WithLogger(logger), relation.WithMetrics(s.Metrics))
	}

	if opts.Save {
		popts.Saver = s.Store
	}

	if opts.Embed {
		embedder, err := s.Registry.GetEmbedder(config.EmbedderName)
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		popts.Indexer = index.NewIndexer(embedder, s.Store, cfg.Embedding.BatchSize, logger)
	}

	return pipeline.New(popts), nil
}
