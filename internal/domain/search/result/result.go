// Package result defines search hit and page types.
package result

import (
	"time"

	"github.com/alex-tgk/searchlight/internal/domain"
)

// Result is a single search hit.
type Result struct {
	entityType string
	entityID   string
	title      string
	content    string
	score      float64
	rank       float64
	metadata   domain.Metadata
	createdAt  time.Time
	updatedAt  time.Time
}

// New creates a search result.
func New(
	entityType, entityID, title, content string,
	score, rank float64,
	metadata domain.Metadata,
	createdAt, updatedAt time.Time,
) Result {
	return Result{
		entityType: entityType, entityID: entityID,
		title: title, content: content,
		score: score, rank: rank, metadata: metadata,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// EntityType returns the hit's entity type.
func (r *Result) EntityType() string { return r.entityType }

// EntityID returns the hit's entity identifier.
func (r *Result) EntityID() string { return r.entityID }

// Title returns the document title.
func (r *Result) Title() string { return r.title }

// Content returns the document content body.
func (r *Result) Content() string { return r.content }

// Score returns the relevance score.
func (r *Result) Score() float64 { return r.score }

// Rank returns the stored popularity boost.
func (r *Result) Rank() float64 { return r.rank }

// Metadata returns the document metadata.
func (r *Result) Metadata() domain.Metadata { return r.metadata }

// CreatedAt returns the first-index timestamp.
func (r *Result) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last-write timestamp.
func (r *Result) UpdatedAt() time.Time { return r.updatedAt }

// WithScore returns a copy with the score replaced (fusion rescoring).
func (r *Result) WithScore(score float64) Result {
	c := *r
	c.score = score
	return c
}

// Key returns the (entityType, entityID) identity as a storage key string.
func (r *Result) Key() string {
	return domain.KeyPrefixDocument + r.entityType + ":" + r.entityID
}

// Page is a materialized response page. Plain struct: it crosses the cache
// boundary as JSON.
type Page struct {
	Results    []PageItem `json:"results"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
	// ExecutionTimeMS is the wall time of the request that produced this
	// response, so a cached page reports the cache lookup, not the original
	// search.
	ExecutionTimeMS int64    `json:"executionTimeMs"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

// PageItem is a single serialized hit within a Page.
type PageItem struct {
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Title      string          `json:"title"`
	Excerpt    string          `json:"excerpt,omitempty"`
	Score      float64         `json:"score"`
	Metadata   domain.Metadata `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
