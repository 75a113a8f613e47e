// Package maintenance runs scheduled background sweeps: suggestion pruning
// and vectorRef reconciliation.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/domain/document"
)

// suggestionCleaner prunes stale suggestion terms.
type suggestionCleaner interface {
	Cleanup(ctx context.Context, maxAge time.Duration, minFrequency int64) (int, error)
}

// keywordIndex exposes the documents still missing a semantic vector.
type keywordIndex interface {
	ListMissingVectorRefs(ctx context.Context, limit int) ([]document.Document, error)
	SetVectorRef(ctx context.Context, entityType, entityID, vectorRef string) error
}

// semanticIndex re-derives vectors for repaired documents.
type semanticIndex interface {
	IsEnabled() bool
	IndexDocument(ctx context.Context, doc document.Document) (string, error)
}

// Config holds sweep schedules and limits.
type Config struct {
	PruneSchedule     string
	ReconcileSchedule string
	MaxTermAge        time.Duration
	MinTermFrequency  int64
	ReconcileBatch    int
}

// Sweeper schedules the background maintenance jobs.
type Sweeper struct {
	cfg      Config
	suggest  suggestionCleaner
	keyword  keywordIndex
	semantic semanticIndex
	cron     *cron.Cron
	logger   *zap.Logger
}

// New creates a sweeper. Jobs do not run until Start.
func New(cfg Config, suggest suggestionCleaner, kw keywordIndex, sem semanticIndex, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		suggest:  suggest,
		keyword:  kw,
		semantic: sem,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the cron entries and begins scheduling.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.PruneSchedule, func() {
		if _, err := s.RunPrune(context.Background()); err != nil {
			s.logger.Error("suggestion prune failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule prune %q: %w", s.cfg.PruneSchedule, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.ReconcileSchedule, func() {
		if _, err := s.RunReconcile(context.Background()); err != nil {
			s.logger.Error("vector reconcile failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule reconcile %q: %w", s.cfg.ReconcileSchedule, err)
	}

	s.cron.Start()
	s.logger.Info("maintenance sweeper started",
		zap.String("prune_schedule", s.cfg.PruneSchedule),
		zap.String("reconcile_schedule", s.cfg.ReconcileSchedule),
	)
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunPrune removes stale suggestion terms once. Also callable directly from
// the sweep CLI command.
func (s *Sweeper) RunPrune(ctx context.Context) (int, error) {
	removed, err := s.suggest.Cleanup(ctx, s.cfg.MaxTermAge, s.cfg.MinTermFrequency)
	if err != nil {
		return removed, err
	}
	s.logger.Info("suggestion prune complete", zap.Int("removed", removed))
	return removed, nil
}

// RunReconcile re-embeds documents whose semantic write was lost, repairing
// the vectorRef cross-reference. No-op when the semantic backend is disabled.
func (s *Sweeper) RunReconcile(ctx context.Context) (int, error) {
	if !s.semantic.IsEnabled() {
		return 0, nil
	}

	docs, err := s.keyword.ListMissingVectorRefs(ctx, s.cfg.ReconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list missing vector refs: %w", err)
	}

	repaired := 0
	for i := range docs {
		ref, err := s.semantic.IndexDocument(ctx, docs[i])
		if err != nil {
			s.logger.Warn("reconcile embed failed",
				zap.String("key", docs[i].Key()),
				zap.Error(err),
			)
			continue
		}
		if err := s.keyword.SetVectorRef(ctx, docs[i].EntityType(), docs[i].EntityID(), ref); err != nil {
			s.logger.Warn("reconcile vector_ref write failed",
				zap.String("key", docs[i].Key()),
				zap.Error(err),
			)
			continue
		}
		repaired++
	}

	s.logger.Info("vector reconcile complete",
		zap.Int("candidates", len(docs)),
		zap.Int("repaired", repaired),
	)
	return repaired, nil
}
