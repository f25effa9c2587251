package config

import "time"

// Defaults shared with callers that bypass the config file.
const (
	DefaultPort         = 5002
	DefaultModel        = "nomic-embed-text"
	DefaultBaseURL      = "http://localhost:11434"
	DefaultDataDir      = "data"
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 40
	DefaultK            = 2
	DefaultBatchSize    = 100
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "db/ragindex.db"
	}
	if cfg.Embedding.Driver == "" {
		cfg.Embedding.Driver = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = DefaultBaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultModel
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = 1
	}
	if cfg.Embedding.MaxFailures == 0 {
		cfg.Embedding.MaxFailures = 5
	}
	if cfg.Embedding.OpenTimeout == 0 {
		cfg.Embedding.OpenTimeout = 30 * time.Second
	}
	if cfg.Ingest.DataDir == "" {
		cfg.Ingest.DataDir = DefaultDataDir
	}
	if cfg.Ingest.DefaultChunkSize == 0 {
		cfg.Ingest.DefaultChunkSize = DefaultChunkSize
	}
	if cfg.Ingest.DefaultChunkOverlap == 0 {
		cfg.Ingest.DefaultChunkOverlap = DefaultChunkOverlap
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = DefaultBatchSize
	}
	if cfg.Ingest.HistoryLimit == 0 {
		cfg.Ingest.HistoryLimit = 100
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = DefaultK
	}
	if len(cfg.Search.Tiers) == 0 {
		cfg.Search.Tiers = []string{"editor", "owner"}
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt", ".md", ".rst", ".docx", ".xlsx"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
