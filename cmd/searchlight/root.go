package main

import (
	"github.com/spf13/cobra"

	"github.com/alex-tgk/searchlight/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "searchlight",
	Short:   "Hybrid keyword and semantic search engine",
	Version: version.Version + " (" + version.Commit + ")",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(reindexCheckCmd)
}
