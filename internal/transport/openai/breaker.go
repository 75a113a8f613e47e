package openai

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/domain"
)

// BreakerConfig holds circuit breaker settings for the embedding hop.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
}

// BreakerEmbedder wraps an Embedder with a circuit breaker so a failing
// embedding provider stops consuming the request budget.
type BreakerEmbedder struct {
	inner domain.Embedder
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerEmbedder creates a circuit-breaking embedder decorator.
func NewBreakerEmbedder(inner domain.Embedder, cfg BreakerConfig, logger *zap.Logger) *BreakerEmbedder {
	st := gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerEmbedder{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(st),
	}
}

// Embed implements domain.Embedder through the breaker.
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.Embed(ctx, text)
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return res.(domain.EmbeddingResult), nil
}

// HealthCheck forwards the reachability check to the wrapped embedder. It
// bypasses the breaker: reachability must stay observable while the breaker
// is open.
func (b *BreakerEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := b.inner.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
