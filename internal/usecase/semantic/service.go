// Package semantic implements the optional vector-similarity client: bounded
// timeouts on the embedding hop and graceful degradation to empty results.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/document"
	"github.com/alex-tgk/searchlight/internal/metrics"
)

// vectorStore is the persistence contract for embedding vectors.
type vectorStore interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, ref, entityType, entityID string, vec []float32) error
	Delete(ctx context.Context, ref string) (bool, error)
	SearchKNN(ctx context.Context, vec []float32, k int, entityTypes []string) ([]domain.VectorMatch, error)
}

// Client is the semantic search client. A nil-configured client (no API key)
// reports IsEnabled() == false and degrades every operation accordingly.
type Client struct {
	enabled bool
	timeout time.Duration
	embed   domain.Embedder
	vectors vectorStore
	logger  *zap.Logger
}

// New creates a semantic client. embed may be nil when the backend is not
// configured; enabled must be false in that case.
func New(enabled bool, timeout time.Duration, embed domain.Embedder, vectors vectorStore, logger *zap.Logger) *Client {
	return &Client{
		enabled: enabled,
		timeout: timeout,
		embed:   embed,
		vectors: vectors,
		logger:  logger,
	}
}

// IsEnabled reports whether the semantic backend is configured.
func (c *Client) IsEnabled() bool {
	return c.enabled
}

// healthChecker is implemented by embedders that can report provider
// reachability without consuming embedding tokens.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck reports whether the semantic backend is usable: configured and,
// when the embedder can report it, reachable. A disabled client is never
// healthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if !c.enabled {
		return false
	}
	if hc, ok := c.embed.(healthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			c.logger.Warn("embedding provider health check failed", zap.Error(err))
			return false
		}
	}
	return true
}

// EnsureIndex creates the vector index when the client is enabled.
func (c *Client) EnsureIndex(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.vectors.EnsureIndex(ctx)
}

// Search returns the k nearest documents to the query text. It never returns
// an error: disabled backend, embedding timeout, open breaker, and store
// failures all degrade to an empty list so hybrid search can continue on
// keyword results alone.
func (c *Client) Search(ctx context.Context, query string, k int, entityTypes []string) []domain.VectorMatch {
	if !c.enabled || query == "" || k <= 0 {
		return nil
	}

	vec, err := c.embedWithTimeout(ctx, query)
	if err != nil {
		c.degrade("embed query", err)
		return nil
	}

	matches, err := c.vectors.SearchKNN(ctx, vec, k, entityTypes)
	if err != nil {
		c.degrade("knn search", err)
		return nil
	}
	return matches
}

// IndexDocument embeds a document and stores the vector, returning the
// vectorRef. The ref is reused when the document already carries one so
// re-indexing never leaks vector hashes.
func (c *Client) IndexDocument(ctx context.Context, doc document.Document) (string, error) {
	if !c.enabled {
		return "", domain.ErrSemanticDisabled
	}

	vec, err := c.embedWithTimeout(ctx, embeddingText(doc))
	if err != nil {
		return "", fmt.Errorf("embed document %s: %w", doc.Key(), err)
	}

	ref := doc.VectorRef()
	if ref == "" {
		ref = uuid.NewString()
	}
	if err := c.vectors.Upsert(ctx, ref, doc.EntityType(), doc.EntityID(), vec); err != nil {
		return "", fmt.Errorf("store vector for %s: %w", doc.Key(), err)
	}
	return ref, nil
}

// RemoveVector deletes a stored vector. Returns false when the ref was absent.
func (c *Client) RemoveVector(ctx context.Context, ref string) (bool, error) {
	if !c.enabled || ref == "" {
		return false, nil
	}
	return c.vectors.Delete(ctx, ref)
}

func (c *Client) embedWithTimeout(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.embed.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
		}
		return nil, err
	}
	return res.Embedding, nil
}

func (c *Client) degrade(op string, err error) {
	metrics.SemanticDegradedTotal.Inc()
	c.logger.Warn("semantic search degraded",
		zap.String("op", op),
		zap.Error(err),
	)
}

// embeddingText builds the text fed to the embedding model: title carries
// most of the signal, content fills in the rest.
func embeddingText(doc document.Document) string {
	if doc.Content() == "" {
		return doc.Title()
	}
	return doc.Title() + "\n" + doc.Content()
}
