package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/config"
	"github.com/alex-tgk/searchlight/internal/db"
	dbRedis "github.com/alex-tgk/searchlight/internal/db/redis"
	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/maintenance"
	"github.com/alex-tgk/searchlight/internal/metrics"
	analyticsrepo "github.com/alex-tgk/searchlight/internal/repository/analytics"
	keywordrepo "github.com/alex-tgk/searchlight/internal/repository/keyword"
	"github.com/alex-tgk/searchlight/internal/repository/searchcache"
	suggestionrepo "github.com/alex-tgk/searchlight/internal/repository/suggestion"
	vectorrepo "github.com/alex-tgk/searchlight/internal/repository/vector"
	openaiEmb "github.com/alex-tgk/searchlight/internal/transport/openai"
	healthuc "github.com/alex-tgk/searchlight/internal/usecase/health"
	indexinguc "github.com/alex-tgk/searchlight/internal/usecase/indexing"
	searchuc "github.com/alex-tgk/searchlight/internal/usecase/search"
	semanticuc "github.com/alex-tgk/searchlight/internal/usecase/semantic"
	suggestuc "github.com/alex-tgk/searchlight/internal/usecase/suggest"
	"github.com/alex-tgk/searchlight/internal/version"
)

// app is the wired object graph shared by the serve and sweep commands.
type app struct {
	cfg      config.Config
	store    db.Store
	keyword  *keywordrepo.Repo
	semantic *semanticuc.Client
	search   *searchuc.Service
	indexing *indexinguc.Service
	suggest  *suggestuc.Service
	health   *healthuc.Service
	clicks   *analyticsrepo.Repo
	sweeper  *maintenance.Sweeper
	logger   *zap.Logger
}

// newApp connects to the backends and wires the full service graph.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readiness); err != nil {
		store.Close()
		return nil, fmt.Errorf("store not ready: %w", err)
	}

	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	keywordRepo := keywordrepo.New(store)
	if err := keywordRepo.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure document index: %w", err)
	}

	vectorRepo := vectorrepo.New(store, cfg.Semantic.Dimensions)

	var embedder domain.Embedder
	if cfg.Semantic.Enabled() {
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Semantic.APIKey,
			BaseURL:    cfg.Semantic.BaseURL,
			Model:      cfg.Semantic.Model,
			Dimensions: cfg.Semantic.Dimensions,
			Logger:     logger,
		})
		embedder = openaiEmb.NewBreakerEmbedder(base, openaiEmb.BreakerConfig{
			MaxRequests:  cfg.Semantic.Breaker.MaxRequests,
			Interval:     time.Duration(cfg.Semantic.Breaker.IntervalSec) * time.Second,
			Timeout:      time.Duration(cfg.Semantic.Breaker.TimeoutSec) * time.Second,
			FailureRatio: cfg.Semantic.Breaker.FailureRatio,
		}, logger)
	}

	semanticClient := semanticuc.New(
		cfg.Semantic.Enabled(),
		time.Duration(cfg.Semantic.TimeoutSec)*time.Second,
		embedder,
		vectorRepo,
		logger,
	)
	if cfg.Semantic.Enabled() {
		if err := semanticClient.EnsureIndex(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure vector index: %w", err)
		}
	}

	suggestSvc := suggestuc.New(suggestionrepo.New(store), logger)
	analyticsRepo := analyticsrepo.New(store, time.Duration(cfg.Analytics.RetentionDays)*24*time.Hour)
	cacheRepo := searchcache.New(store, time.Duration(cfg.Search.CacheTTLSec)*time.Second)

	searchSvc := searchuc.New(
		keywordRepo,
		semanticClient,
		suggestSvc,
		analyticsRepo,
		cacheRepo,
		searchuc.Weights{
			Keyword:    cfg.Search.Weights.Keyword,
			Semantic:   cfg.Search.Weights.Semantic,
			Recency:    cfg.Search.Weights.Recency,
			Popularity: cfg.Search.Weights.Popularity,
		},
		cfg.Search.SuggestionThreshold,
		logger,
	)

	indexingSvc := indexinguc.New(keywordRepo, semanticClient, cacheRepo, cfg.Indexing.BatchSize, logger)
	healthSvc := healthuc.New(keywordRepo, semanticClient, version.Version)

	sweeper := maintenance.New(maintenance.Config{
		PruneSchedule:     cfg.Suggestions.PruneSchedule,
		ReconcileSchedule: cfg.Maintenance.ReconcileSchedule,
		MaxTermAge:        time.Duration(cfg.Suggestions.MaxAgeDays) * 24 * time.Hour,
		MinTermFrequency:  cfg.Suggestions.MinFrequency,
		ReconcileBatch:    cfg.Maintenance.ReconcileBatch,
	}, suggestSvc, keywordRepo, semanticClient, logger)

	return &app{
		cfg:      cfg,
		store:    store,
		keyword:  keywordRepo,
		semantic: semanticClient,
		search:   searchSvc,
		indexing: indexingSvc,
		suggest:  suggestSvc,
		health:   healthSvc,
		clicks:   analyticsRepo,
		sweeper:  sweeper,
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}
