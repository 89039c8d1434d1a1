package svcctx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jackzampolin/vbpl/internal/config"
	"github.com/jackzampolin/vbpl/internal/home"
	"github.com/jackzampolin/vbpl/internal/llmcall"
	"github.com/jackzampolin/vbpl/internal/llmchunk"
	"github.com/jackzampolin/vbpl/internal/metrics"
	"github.com/jackzampolin/vbpl/internal/prompts"
	"github.com/jackzampolin/vbpl/internal/providers"
	"github.com/jackzampolin/vbpl/internal/relation"
	"github.com/jackzampolin/vbpl/internal/store"
)

// OpenOptions locate the inputs of Open.
type OpenOptions struct {
	Home       *home.Dir
	ConfigFile string
	// Registerer receives the Prometheus collectors. Nil uses the
	// default registerer.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// Open loads configuration, opens the store and wires the services on top
// of it. Close must be called to flush pending call records.
func Open(ctx context.Context, opts OpenOptions) (*Services, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Home == nil {
		return nil, fmt.Errorf("home directory is required")
	}
	h := opts.Home
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	cfgMgr, err := config.NewManager(config.Options{
		ConfigFile: opts.ConfigFile,
		SearchDirs: []string{h.Path()},
		EnvFiles:   []string{".env", h.EnvPath()},
	})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg := cfgMgr.Get()
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = h.DatabasePath()
	}
	st, err := store.New(dbPath, cfg.Store.EmbeddingDim, logger)
	if err != nil {
		return nil, err
	}

	cfgStore := config.NewSQLStore(st.DB())
	if err := cfgMgr.Apply(ctx, cfgStore); err != nil {
		st.Close()
		return nil, fmt.Errorf("applying stored config: %w", err)
	}

	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	registry.Reload(cfgMgr.Get().ToProviderRegistryConfig())
	cfgMgr.OnChange(func(c *config.Config) {
		registry.Reload(c.ToProviderRegistryConfig())
		logger.Info("provider registry reloaded from config")
	})

	sink := store.NewSink(store.SinkConfig{Store: st, Logger: logger})
	sink.Start(ctx)

	resolver := prompts.NewResolver(st, logger)
	for _, p := range relation.Prompts() {
		resolver.Register(p)
	}
	for _, p := range llmchunk.Prompts() {
		resolver.Register(p)
	}
	if err := resolver.SyncAll(ctx); err != nil {
		sink.Stop()
		st.Close()
		return nil, err
	}

	return &Services{
		Config:       cfgMgr,
		ConfigStore:  cfgStore,
		Store:        st,
		Sink:         sink,
		Registry:     registry,
		Prompts:      resolver,
		LLMCallStore: llmcall.NewStore(st.DB()),
		Recorder:     llmcall.NewRecorder(sink),
		Metrics:      metrics.New(opts.Registerer),
		Home:         h,
		Logger:       logger,
	}, nil
}

// Close flushes the sink and closes the store.
func (s *Services) Close() error {
	if s.Sink != nil {
		s.Sink.Stop()
	}
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
