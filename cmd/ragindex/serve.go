package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/server"
	"github.com/hyperjump/ragindex/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run the HTTP API",
	Long: `Starts the HTTP API (POST /api/embed, POST /api/search and friends).
When watch.enabled is set, changes under the data directory re-ingest the
configured collections.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize components", zap.Error(err))
		return err
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()

	var watchSvc server.WatchService
	var w *watcher.Watcher
	if cfg.Watch.Enabled {
		w = watcher.NewWatcher(cfg.Ingest.DataDir, cfg.Watch.Collections, components.Manager,
			watcher.WithDebounce(cfg.Watch.Debounce),
			watcher.WithExtensions(cfg.Watch.Extensions...),
			watcher.WithChunking(cfg.Ingest.DefaultChunkSize, cfg.Ingest.DefaultChunkOverlap),
			watcher.WithLogger(logger),
		)
		if err := w.Start(watchCtx); err != nil {
			components.Close(cfg.Server.ShutdownTimeout)
			logger.Error("failed to start watcher", zap.Error(err))
			return err
		}
		watchSvc = w
	}

	srv := server.NewServer(
		components.Manager,
		components.Searcher,
		components.Registry,
		cfg,
		logger,
		watchSvc,
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-sigChan:
		logger.Info("Shutting down...")
	case err, ok := <-serveErr:
		if ok {
			logger.Error("server failed", zap.Error(err))
			runErr = err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("server shutdown failed", zap.Error(err))
	}
	if w != nil {
		w.Stop()
	}
	watchCancel()
	components.Close(cfg.Server.ShutdownTimeout)
	return runErr
}
