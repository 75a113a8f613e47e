package search

import (
	"context"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/analytics"
	"github.com/alex-tgk/searchlight/internal/domain/document"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
)

// KeywordProvider is the full-text search contract.
type KeywordProvider interface {
	Search(
		ctx context.Context,
		text string, entityTypes []string, filters map[string]string,
		fuzzy bool, offset, limit int,
	) ([]result.Result, int, error)

	GetDocument(ctx context.Context, entityType, entityID string) (document.Document, error)
}

// SemanticClient is the vector-similarity contract. Search never fails: a
// broken semantic backend degrades to an empty match list.
type SemanticClient interface {
	IsEnabled() bool
	Search(ctx context.Context, query string, k int, entityTypes []string) []domain.VectorMatch
}

// Suggester provides alternative terms when a search comes back sparse and
// learns terms from executed queries.
type Suggester interface {
	Fallback(ctx context.Context, query string, limit int) ([]string, error)
	LearnFromQuery(ctx context.Context, query, entityType string)
}

// AnalyticsSink records executed searches.
type AnalyticsSink interface {
	AppendQuery(ctx context.Context, entry analytics.QueryLogEntry) error
}

// ResponseCache caches materialized pages keyed by the canonical request.
type ResponseCache interface {
	Enabled() bool
	Get(ctx context.Context, canonicalKey string, entityTypes []string) (result.Page, bool, error)
	Put(ctx context.Context, canonicalKey string, entityTypes []string, page result.Page) error
}
