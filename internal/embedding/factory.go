package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/config"
)

// New builds the configured embedder: the provider driver, guarded by a rate limiter
// and circuit breaker, behind an LRU cache.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	var base Embedder
	switch cfg.Driver {
	case "ollama", "":
		base = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, cfg.Timeout)
	case "mock":
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding driver: %s (supported: ollama, mock)", cfg.Driver)
	}
	guarded := NewGuarded(base, GuardOptions{
		Name:        cfg.Driver + ":" + cfg.Model,
		RateLimit:   cfg.RateLimit,
		Burst:       cfg.Burst,
		MaxFailures: cfg.MaxFailures,
		OpenTimeout: cfg.OpenTimeout,
		Logger:      logger,
	})
	return NewCached(guarded, cfg.CacheSize), nil
}
