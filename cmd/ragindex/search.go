package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/ragindex/internal/cli"
	"github.com/hyperjump/ragindex/internal/models"
)

var (
	searchIndex  string
	searchK      int
	searchServer string
	searchOutput string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a collection",
	Long: `Returns the nearest chunks of a collection for each permission tier
(user:editor and user:owner by default). Tier lists are printed separately.

The query is all arguments joined by spaces, so quoting is optional.
By default the command asks a running server; pass --server "" to open the
store directly.`,
	Example: `  ragindex search --index support-docs how do refunds work
  ragindex search --index support-docs -k 5 -o json "reset password"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchIndex, "index", "", "collection to search (required)")
	searchCmd.Flags().IntVarP(&searchK, "top-k", "k", 0, "results per tier (default from config)")
	searchCmd.Flags().StringVar(&searchServer, "server", cli.DefaultServerURL, "server URL (empty = open the store directly)")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "text", "output format: text or json")
	_ = searchCmd.MarkFlagRequired("index")
	rootCmd.AddCommand(searchCmd)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := buildSearchQuery(args)
	if query == "" {
		return errors.New("query must not be empty")
	}
	format, err := cli.ParseOutputFormat(searchOutput)
	if err != nil {
		return err
	}

	var res *models.TieredResults
	if searchServer != "" {
		var k *int
		if cmd.Flags().Changed("top-k") {
			k = &searchK
		}
		res, err = searchViaHTTP(cmd.Context(), searchServer, query, searchIndex, k)
	} else {
		res, err = searchDirect(cmd, query)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return cli.WriteTieredResults(cmd.OutOrStdout(), res, format)
}

// searchViaHTTP asks a running server. A nil k lets the server apply its default.
func searchViaHTTP(ctx context.Context, serverURL, query, indexName string, k *int) (*models.TieredResults, error) {
	return cli.NewClient(serverURL, 60*time.Second).Search(ctx, query, indexName, k)
}

func searchDirect(cmd *cobra.Command, query string) (*models.TieredResults, error) {
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

	k := cfg.Search.DefaultK
	if cmd.Flags().Changed("top-k") {
		k = searchK
	}
	return components.Searcher.Search(cmd.Context(), query, searchIndex, k)
}
