// Package config loads vbpl configuration from defaults, a YAML file, the
// environment and database overrides, and hot-reloads the file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/vbpl/internal/providers"
)

// EnvPrefix prefixes every environment override (VBPL_CHUNKER_MODE).
const EnvPrefix = "VBPL"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)

	applyMu sync.Mutex
	// base holds the pre-override value of every key set by Apply, so a
	// removed override falls back to the file, env or default value.
	base map[string]any
}

// Options locate the inputs of a Manager.
type Options struct {
	// ConfigFile is an explicit config path. When empty, config.yaml is
	// searched in the working directory and in SearchDirs.
	ConfigFile string
	SearchDirs []string

	// EnvFiles are loaded into the process environment before viper reads
	// it. Missing files are skipped; variables already set are kept.
	EnvFiles []string
}

// NewManager creates a new config manager and loads initial config.
func NewManager(opts Options) (*Manager, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		base:      make(map[string]any),
	}
	if err := cm.initViper(opts); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(opts Options) error {
	for _, e := range DefaultEntries() {
		cm.v.SetDefault(e.Key, e.Value)
	}

	// Environment variables with VBPL_ prefix; nested keys use underscores.
	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if opts.ConfigFile != "" {
		cm.v.SetConfigFile(opts.ConfigFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		for _, d := range opts.SearchDirs {
			cm.v.AddConfigPath(d)
		}
	}

	// The config file is optional.
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(opts.ConfigFile != "" && errors.Is(err, fs.ErrNotExist)) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, or "".
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// Apply layers store entries over the current configuration and notifies
// OnChange callbacks. Keys applied earlier but no longer stored return to
// their underlying value. An invalid result leaves the configuration and
// the layered values unchanged.
func (cm *Manager) Apply(ctx context.Context, store Store) error {
	entries, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("reading config overrides: %w", err)
	}

	cm.applyMu.Lock()
	defer cm.applyMu.Unlock()

	prev := make(map[string]any)
	var removed []string
	for key, e := range entries {
		if _, ok := cm.base[key]; !ok {
			cm.base[key] = cm.v.Get(key)
		}
		prev[key] = cm.v.Get(key)
		cm.v.Set(key, e.Value)
	}
	for key, v := range cm.base {
		if _, ok := entries[key]; ok {
			continue
		}
		prev[key] = cm.v.Get(key)
		cm.v.Set(key, v)
		removed = append(removed, key)
	}

	if err := cm.reload(); err != nil {
		for key, v := range prev {
			cm.v.Set(key, v)
		}
		return err
	}
	for _, key := range removed {
		delete(cm.base, key)
	}
	return nil
}

func (cm *Manager) reload() error {
	cfg, err := cm.load()
	if err != nil {
		return err
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// WatchConfig enables hot-reloading of configuration. Reloads that fail
// to parse or validate keep the previous configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		_ = cm.reload()
	})
	cm.v.WatchConfig()
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// EmbedderName is the registry name of the configured embedder.
const EmbedderName = "default"

// ToProviderRegistryConfig converts the config to a format suitable for
// providers.Registry. It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig),
		Embedders:    make(map[string]providers.EmbedderConfig),
	}

	for name, llm := range c.LLMProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:      llm.Type,
			Model:     llm.Model,
			APIKey:    ResolveEnvVars(llm.APIKey),
			BaseURL:   llm.BaseURL,
			RateLimit: llm.RateLimit,
			Timeout:   time.Duration(llm.TimeoutSeconds) * time.Second,
			Enabled:   llm.Enabled,
		}
	}

	e := c.Embedding
	cfg.Embedders[EmbedderName] = providers.EmbedderConfig{
		Type:       e.Type,
		Model:      e.Model,
		APIKey:     ResolveEnvVars(e.APIKey),
		BaseURL:    e.BaseURL,
		Dimensions: e.Dimensions,
		BatchSize:  e.BatchSize,
		Enabled:    e.Enabled,
	}
	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# vbpl configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell or a .env file: OPENAI_API_KEY=xxx OPENROUTER_API_KEY=xxx
# Any key can be overridden with VBPL_<SECTION>_<KEY>, e.g. VBPL_CHUNKER_MODE=llm

`)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, append(header, data...), 0o644)
}
