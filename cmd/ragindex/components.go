package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/collection"
	"github.com/hyperjump/ragindex/internal/config"
	"github.com/hyperjump/ragindex/internal/embedding"
	"github.com/hyperjump/ragindex/internal/extract"
	"github.com/hyperjump/ragindex/internal/indexer"
	"github.com/hyperjump/ragindex/internal/search"
	"github.com/hyperjump/ragindex/internal/storage"
)

// Components holds the initialized application components.
type Components struct {
	Store     storage.Store
	Embedder  embedding.Embedder
	Registry  *collection.Registry
	Extractor *extract.Extractor
	Ingestor  *indexer.Ingestor
	Manager   *indexer.Manager
	Searcher  *search.Searcher

	logger *zap.Logger
}

// Close releases components in reverse order of construction. Running ingestions
// get shutdownTimeout to finish.
func (c *Components) Close(shutdownTimeout time.Duration) {
	if c.Manager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := c.Manager.Shutdown(ctx); err != nil {
			c.logger.Warn("ingestions still running at shutdown", zap.Error(err))
		}
		cancel()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.logger.Warn("store close failed", zap.Error(err))
		}
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{logger: logger}

	store, err := storage.New(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	c.Store = store

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close(cfg.Server.ShutdownTimeout)
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	c.Embedder = embedder

	c.Registry = collection.NewRegistry(store, embedder, logger,
		collection.WithBatchSize(cfg.Ingest.BatchSize))

	c.Extractor = extract.NewExtractor(
		extract.WithExtensions(cfg.Watch.Extensions...),
		extract.WithLogger(logger),
	)

	perms, err := cfg.IngestPermissions()
	if err != nil {
		c.Close(cfg.Server.ShutdownTimeout)
		return nil, err
	}
	c.Ingestor = indexer.NewIngestor(c.Extractor, c.Registry, cfg.Ingest.DataDir,
		indexer.WithLogger(logger),
		indexer.WithPermissions(perms),
	)
	c.Manager = indexer.NewManager(c.Ingestor,
		indexer.WithHistoryLimit(cfg.Ingest.HistoryLimit),
		indexer.WithManagerLogger(logger),
	)

	tiers, err := cfg.SearchTiers()
	if err != nil {
		c.Close(cfg.Server.ShutdownTimeout)
		return nil, err
	}
	c.Searcher = search.NewSearcher(c.Registry,
		search.WithTiers(tiers...),
		search.WithLogger(logger),
	)

	logger.Debug("components initialized",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("storage_path", cfg.Storage.Path),
		zap.String("embedding_driver", cfg.Embedding.Driver),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("data_dir", cfg.Ingest.DataDir),
	)
	return c, nil
}
