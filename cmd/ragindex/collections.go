package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/ragindex/internal/cli"
)

var (
	collectionsServer string
	collectionsOutput string
)

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"ls"},
	Short:   "List stored collections",
	Args:    cobra.NoArgs,
	RunE:    runCollections,
}

func init() {
	collectionsCmd.Flags().StringVar(&collectionsServer, "server", cli.DefaultServerURL, "server URL (empty = open the store directly)")
	collectionsCmd.Flags().StringVarP(&collectionsOutput, "output", "o", "text", "output format: text or json")
	rootCmd.AddCommand(collectionsCmd)
}

func runCollections(cmd *cobra.Command, _ []string) error {
	format, err := cli.ParseOutputFormat(collectionsOutput)
	if err != nil {
		return err
	}
	var infos []cli.CollectionInfo
	if collectionsServer != "" {
		infos, err = cli.NewClient(collectionsServer, 30*time.Second).Collections(cmd.Context())
	} else {
		infos, err = collectionsDirect(cmd)
	}
	if err != nil {
		return fmt.Errorf("list collections failed: %w", err)
	}
	return cli.WriteCollections(cmd.OutOrStdout(), infos, format)
}

func collectionsDirect(cmd *cobra.Command) ([]cli.CollectionInfo, error) {
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

	ctx := cmd.Context()
	names, err := components.Registry.Stored(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]cli.CollectionInfo, 0, len(names))
	for _, name := range names {
		n, err := components.Store.Count(ctx, name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, cli.CollectionInfo{Name: name, Count: n})
	}
	return infos, nil
}
