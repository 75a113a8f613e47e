package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/config"
	logpkg "github.com/alex-tgk/searchlight/internal/logger"
)

var reindexCheckLimit int

var reindexCheckCmd = &cobra.Command{
	Use:   "reindex-check",
	Short: "Report documents missing a semantic vector without repairing them",
	Long: "Scans the document index for entries with no vectorRef and prints " +
		"them. Dry-run companion to the reconcile sweep.",
	RunE: runReindexCheck,
}

func init() {
	reindexCheckCmd.Flags().IntVar(&reindexCheckLimit, "limit", 100, "maximum documents to report")
}

func runReindexCheck(cmd *cobra.Command, args []string) error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to build service graph", zap.Error(err))
		return err
	}
	defer a.Close()

	docs, err := a.keyword.ListMissingVectorRefs(ctx, reindexCheckLimit)
	if err != nil {
		logger.Error("Scan failed", zap.Error(err))
		return err
	}

	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "All indexed documents have a vector reference.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d document(s) missing a vector reference:\n", len(docs))
	for i := range docs {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", docs[i].Key())
	}
	if !cfg.Semantic.Enabled() {
		fmt.Fprintln(cmd.OutOrStdout(), "Semantic backend is disabled; the reconcile sweep will not repair these.")
	}
	return nil
}
