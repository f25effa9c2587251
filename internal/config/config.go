// Package config provides configuration loading and structs for the ragindex server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/ragindex/internal/apperr"
	"github.com/hyperjump/ragindex/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the vector store driver and where it keeps its data.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | memory
	Path   string `yaml:"path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Driver      string        `yaml:"driver"` // ollama | mock
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Dimensions  int           `yaml:"dimensions"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheSize   int           `yaml:"cache_size"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst       int           `yaml:"burst"`
	MaxFailures uint32        `yaml:"max_failures"` // consecutive failures before the breaker opens
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// IngestConfig holds ingestion defaults.
type IngestConfig struct {
	DataDir             string          `yaml:"data_dir"`
	DefaultChunkSize    int             `yaml:"default_chunk_size"`
	DefaultChunkOverlap int             `yaml:"default_chunk_overlap"`
	BatchSize           int             `yaml:"batch_size"`
	HistoryLimit        int             `yaml:"history_limit"`
	Permissions         map[string]bool `yaml:"permissions"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	DefaultK int      `yaml:"default_k"`
	Tiers    []string `yaml:"tiers"`
}

// WatchConfig holds data directory watch settings.
type WatchConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Collections []string      `yaml:"collections"`
	Extensions  []string      `yaml:"extensions"`
	Debounce    time.Duration `yaml:"debounce"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.Path = expandPath(cfg.Storage.Path, configDir)
	cfg.Ingest.DataDir = expandPath(cfg.Ingest.DataDir, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// IngestPermissions returns the permission overlay stamped onto ingested chunks.
func (c *Config) IngestPermissions() (models.Permissions, error) {
	if len(c.Ingest.Permissions) == 0 {
		return models.DefaultIngestPermissions(), nil
	}
	return models.ParsePermissions(c.Ingest.Permissions)
}

// SearchTiers returns the permission tiers the query orchestrator searches.
func (c *Config) SearchTiers() ([]models.Permission, error) {
	tiers := make([]models.Permission, 0, len(c.Search.Tiers))
	for _, name := range c.Search.Tiers {
		p, err := models.ParsePermission(name)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, p)
	}
	return tiers, nil
}

// Validate checks cross-field constraints. Failures are configuration errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return apperr.Configuration("server port %d out of range", c.Server.Port)
	}
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return apperr.Configuration("unknown storage driver %q (supported: sqlite, memory)", c.Storage.Driver)
	}
	switch c.Embedding.Driver {
	case "ollama", "mock":
	default:
		return apperr.Configuration("unknown embedding driver %q (supported: ollama, mock)", c.Embedding.Driver)
	}
	if c.Ingest.DefaultChunkOverlap >= c.Ingest.DefaultChunkSize {
		return apperr.Configuration("default chunk overlap %d must be smaller than chunk size %d",
			c.Ingest.DefaultChunkOverlap, c.Ingest.DefaultChunkSize)
	}
	if _, err := c.IngestPermissions(); err != nil {
		return apperr.Configuration("ingest permissions: %v", err)
	}
	if _, err := c.SearchTiers(); err != nil {
		return apperr.Configuration("search tiers: %v", err)
	}
	return nil
}

// expandPath converts a path to absolute. "~/" is relative to the home directory;
// other relative paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	return filepath.Join(configDir, path)
}
