// Package main is the ragindex CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	debugFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "ragindex",
	Short: "Retrieval index for support documents",
	Long: `ragindex loads the documents in a data directory, splits them into chunks,
embeds them, and stores them in named collections. Queries return one result
list per permission tier.

Run "ragindex serve" for the HTTP API, or use the other commands directly.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
