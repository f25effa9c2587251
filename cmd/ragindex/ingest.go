package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/ragindex/internal/cli"
	"github.com/hyperjump/ragindex/internal/config"
	"github.com/hyperjump/ragindex/internal/models"
)

var (
	ingestIndex        string
	ingestChunkSize    int
	ingestChunkOverlap int
	ingestServer       string
	ingestWait         bool
	ingestOutput       string
)

var ingestCmd = &cobra.Command{
	Use:     "ingest",
	Aliases: []string{"embed"},
	Short:   "Ingest the data directory into a collection",
	Long: `Loads every supported file under the data directory, splits it into chunks,
and adds the chunks the collection does not hold yet.

Without --server the run happens in this process and the command returns when it
finishes. With --server the run is scheduled on a running server; add --wait to
poll until it finishes.`,
	Example: `  ragindex ingest --index support-docs
  ragindex ingest --index support-docs --chunk-size 800 --chunk-overlap 80
  ragindex ingest --index support-docs --server http://localhost:5002 --wait`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestIndex, "index", "", "collection to ingest into (required)")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", config.DefaultChunkSize, "maximum chunk length in characters")
	ingestCmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", config.DefaultChunkOverlap, "characters of context shared by adjacent chunks")
	ingestCmd.Flags().StringVar(&ingestServer, "server", "", "schedule the run on this server instead of running it here")
	ingestCmd.Flags().BoolVar(&ingestWait, "wait", false, "with --server, wait for the run to finish")
	ingestCmd.Flags().StringVarP(&ingestOutput, "output", "o", "text", "output format: text or json")
	_ = ingestCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(ingestOutput)
	if err != nil {
		return err
	}
	req := models.IngestionRequest{IndexName: ingestIndex}

	if ingestServer != "" {
		req.ChunkSize, req.ChunkOverlap = ingestChunkSize, ingestChunkOverlap
		return ingestViaHTTP(cmd, req, format)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	req.ChunkSize = chunkFlag(cmd, "chunk-size", ingestChunkSize, cfg.Ingest.DefaultChunkSize)
	req.ChunkOverlap = chunkFlag(cmd, "chunk-overlap", ingestChunkOverlap, cfg.Ingest.DefaultChunkOverlap)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close(cfg.Server.ShutdownTimeout)

	rec, err := components.Manager.RunSync(cmd.Context(), req)
	if rec != nil {
		if werr := cli.WriteIngestion(cmd.OutOrStdout(), rec, format); werr != nil {
			return werr
		}
	}
	if err != nil {
		logger.Debug("ingestion failed", zap.String("index_name", req.IndexName), zap.Error(err))
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

// chunkFlag prefers an explicit flag over the config default.
func chunkFlag(cmd *cobra.Command, name string, flagValue, configValue int) int {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return configValue
}

func ingestViaHTTP(cmd *cobra.Command, req models.IngestionRequest, format cli.OutputFormat) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client := cli.NewClient(ingestServer, 30*time.Second)
	id, err := client.Embed(ctx, req)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if !ingestWait {
		cmd.Printf("Upload started in background (task %s)\n", id)
		return nil
	}
	rec, err := client.WaitIngestion(ctx, id, time.Second)
	if err != nil {
		return fmt.Errorf("waiting for task %s: %w", id, err)
	}
	if err := cli.WriteIngestion(cmd.OutOrStdout(), rec, format); err != nil {
		return err
	}
	if rec.State == models.StateFailed {
		return fmt.Errorf("ingestion failed: %s", rec.Error)
	}
	return nil
}
