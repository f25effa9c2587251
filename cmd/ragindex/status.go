package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/ragindex/internal/cli"
	"github.com/hyperjump/ragindex/internal/config"
	"github.com/hyperjump/ragindex/internal/storage"
)

var (
	statusServer string
	statusOutput string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics and configuration",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", cli.DefaultServerURL, "server URL (empty = open the store directly)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "text", "output format: text or json")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(statusOutput)
	if err != nil {
		return err
	}
	var status *cli.Status
	if statusServer != "" {
		status, err = cli.NewClient(statusServer, 30*time.Second).Status(cmd.Context())
	} else {
		status, err = statusDirect(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	return cli.WriteStatus(cmd.OutOrStdout(), status, format)
}

func statusDirect(ctx context.Context) (*cli.Status, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close(cfg.Server.ShutdownTimeout)

	names, err := components.Store.Collections(ctx)
	if err != nil {
		return nil, err
	}
	status := &cli.Status{Collections: len(names), Config: statusConfig(cfg)}
	for _, name := range names {
		n, err := components.Store.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		status.Chunks += n
	}
	if cfg.Storage.Driver == string(storage.DriverSQLite) {
		if diskBytes, err := storage.DiskUsageBytes(storage.SQLiteFiles(cfg.Storage.Path)...); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}
	return status, nil
}

func statusConfig(cfg *config.Config) *cli.StatusConfig {
	return &cli.StatusConfig{
		Env:            cfg.Env,
		StorageDriver:  cfg.Storage.Driver,
		EmbeddingModel: cfg.Embedding.Model,
		DataDir:        cfg.Ingest.DataDir,
		ChunkSize:      cfg.Ingest.DefaultChunkSize,
		ChunkOverlap:   cfg.Ingest.DefaultChunkOverlap,
		BatchSize:      cfg.Ingest.BatchSize,
		DefaultK:       cfg.Search.DefaultK,
	}
}
