package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/recollect/ai"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIKeyEnv names the environment variable holding the provider key.
	DefaultAPIKeyEnv = "RECOLLECT_API_KEY"

	DefaultDatabasePath = "recollect.db"
	DefaultHost         = "http://localhost:11434/v1"
	DefaultMaxChars     = 3000
	DefaultWindow       = 2
	DefaultLimit        = 10
)

var (
	// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

// DatabaseConfig locates the relational store and the embedding cache.
type DatabaseConfig struct {
	Path     string `yaml:"path" toml:"path"`
	CacheDir string `yaml:"cache_dir" toml:"cache_dir"`
	CacheTTL string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// AIConfig configures the embedding and extraction providers.
type AIConfig struct {
	Host            string  `yaml:"host" toml:"host"`
	EmbeddingHost   string  `yaml:"embedding_host" toml:"embedding_host"`
	ExtractionHost  string  `yaml:"extraction_host" toml:"extraction_host"`
	EmbeddingModel  string  `yaml:"embedding_model" toml:"embedding_model"`
	ExtractionModel string  `yaml:"extraction_model" toml:"extraction_model"`
	Dimensions      int     `yaml:"dimensions" toml:"dimensions"`
	APIKeyEnv       string  `yaml:"api_key_env" toml:"api_key_env"`
	MaxAttempts     int     `yaml:"max_attempts" toml:"max_attempts"`
	RetryDelay      string  `yaml:"retry_delay" toml:"retry_delay"`
	Concurrency     int     `yaml:"concurrency" toml:"concurrency"`
	RateLimit       float64 `yaml:"rate_limit" toml:"rate_limit"`
}

// IngestionConfig configures chunking and the ingestion worker pool.
type IngestionConfig struct {
	MaxChars  int `yaml:"max_chars" toml:"max_chars"`
	Workers   int `yaml:"workers" toml:"workers"`
	BatchSize int `yaml:"batch_size" toml:"batch_size"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	Limit  int `yaml:"limit" toml:"limit"`
	Before int `yaml:"before" toml:"before"`
	After  int `yaml:"after" toml:"after"`
}

// ExtractionConfig configures artifact extraction.
type ExtractionConfig struct {
	PromptsDir string `yaml:"prompts_dir" toml:"prompts_dir"`
	Workers    int    `yaml:"workers" toml:"workers"`
}

// Config is the root configuration of a recollect archive.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	AI         AIConfig         `yaml:"ai" toml:"ai"`
	Ingestion  IngestionConfig  `yaml:"ingestion" toml:"ingestion"`
	Search     SearchConfig     `yaml:"search" toml:"search"`
	Extraction ExtractionConfig `yaml:"extraction" toml:"extraction"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a config from path. The format follows the file extension:
// .yaml and .yml are YAML, .toml is TOML. If the file does not exist,
// returns defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg to path in the format named by its extension, creating
// directories as needed.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		data, err = toml.Marshal(cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// APIKey returns the provider key from the environment variable named by
// AI.APIKeyEnv. An unset variable yields an empty key.
func (c *Config) APIKey() string {
	name := c.AI.APIKeyEnv
	if name == "" {
		name = DefaultAPIKeyEnv
	}
	return os.Getenv(name)
}

// RetryDelay parses AI.RetryDelay.
func (c *Config) RetryDelay() (time.Duration, error) {
	return parseDuration("ai.retry_delay", c.AI.RetryDelay)
}

// CacheTTL parses Database.CacheTTL.
func (c *Config) CacheTTL() (time.Duration, error) {
	return parseDuration("database.cache_ttl", c.Database.CacheTTL)
}

// ProviderConfig converts the AI section into an ai.Config ready for
// validation.
func (c *Config) ProviderConfig() (*ai.Config, error) {
	delay, err := c.RetryDelay()
	if err != nil {
		return nil, err
	}
	opts := []ai.ConfigOption{
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithExtractionModel(c.AI.ExtractionModel),
		ai.WithEmbeddingDimensions(c.AI.Dimensions),
		ai.WithRetry(c.AI.MaxAttempts, delay),
		ai.WithAPIKey(c.APIKey()),
	}
	if c.AI.Host != "" {
		opts = append(opts, ai.WithHost(c.AI.Host))
	}
	if c.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.AI.EmbeddingHost))
	}
	if c.AI.ExtractionHost != "" {
		opts = append(opts, ai.WithExtractionHost(c.AI.ExtractionHost))
	}
	return ai.NewConfig(opts...), nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if c.AI.RateLimit < 0 {
		return errors.New("config: ai.rate_limit cannot be negative")
	}
	if c.Ingestion.MaxChars < 1 {
		return errors.New("config: ingestion.max_chars must be positive")
	}
	if c.Search.Before < 0 || c.Search.After < 0 {
		return errors.New("config: search window cannot be negative")
	}
	pc, err := c.ProviderConfig()
	if err != nil {
		return err
	}
	return pc.Validate()
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s cannot be negative", field)
	}
	return d, nil
}

func applyDefaults(cfg *Config) {
	defaults := ai.DefaultConfig()

	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Database.CacheTTL == "" {
		cfg.Database.CacheTTL = "720h"
	}
	if cfg.AI.Host == "" && cfg.AI.EmbeddingHost == "" && cfg.AI.ExtractionHost == "" {
		cfg.AI.Host = DefaultHost
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = defaults.EmbeddingModel
	}
	if cfg.AI.ExtractionModel == "" {
		cfg.AI.ExtractionModel = defaults.ExtractionModel
	}
	if cfg.AI.Dimensions == 0 {
		cfg.AI.Dimensions = defaults.EmbeddingDimensions
	}
	if cfg.AI.APIKeyEnv == "" {
		cfg.AI.APIKeyEnv = DefaultAPIKeyEnv
	}
	if cfg.AI.MaxAttempts == 0 {
		cfg.AI.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.AI.RetryDelay == "" {
		cfg.AI.RetryDelay = defaults.RetryDelay.String()
	}
	if cfg.Ingestion.MaxChars == 0 {
		cfg.Ingestion.MaxChars = DefaultMaxChars
	}
	if cfg.Search.Limit == 0 {
		cfg.Search.Limit = DefaultLimit
	}
	if cfg.Search.Before == 0 && cfg.Search.After == 0 {
		cfg.Search.Before = DefaultWindow
		cfg.Search.After = DefaultWindow
	}
}
