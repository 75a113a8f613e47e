package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/config"
	logpkg "github.com/alex-tgk/searchlight/internal/logger"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the maintenance sweeps once and exit",
	Long: "Prunes stale suggestion terms and reconciles documents whose " +
		"semantic vector write was lost, then exits.",
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
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

	pruned, err := a.sweeper.RunPrune(ctx)
	if err != nil {
		logger.Error("Suggestion prune failed", zap.Error(err))
		return err
	}

	repaired, err := a.sweeper.RunReconcile(ctx)
	if err != nil {
		logger.Error("Vector reconcile failed", zap.Error(err))
		return err
	}

	logger.Info("Sweep complete", zap.Int("pruned", pruned), zap.Int("repaired", repaired))
	return nil
}
