// Package request defines the validated search request value object.
package request

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultLimit   = 20
	MaxLimit       = 100
)

// SortOrder selects how fused results are ordered.
type SortOrder string

// Sort order constants.
const (
	SortRelevance  SortOrder = "relevance"
	SortDateDesc   SortOrder = "dateDesc"
	SortDateAsc    SortOrder = "dateAsc"
	SortPopularity SortOrder = "popularity"
)

// IsValid checks if the sort order is one of the supported values.
func (s SortOrder) IsValid() bool {
	return s == SortRelevance || s == SortDateDesc || s == SortDateAsc || s == SortPopularity
}

// Request is a validated search query.
type Request struct {
	query       string
	entityTypes []string
	searchMode  mode.Mode
	sortOrder   SortOrder
	page        int
	limit       int
	fuzzy       bool
	filters     map[string]string
	userID      string
}

// New validates and normalizes search parameters.
// Defaults: mode=hybrid, sort=relevance, page=1, limit=20, fuzzy=true.
// An empty query is allowed (matches nothing on the keyword side).
func New(
	query string,
	entityTypes []string,
	m mode.Mode,
	sortOrder SortOrder,
	page, limit int,
	fuzzy bool,
	filters map[string]string,
	userID string,
) (Request, error) {
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidRequest, MaxQueryLength)
	}
	if m == "" {
		m = mode.Hybrid
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid search mode %q", domain.ErrInvalidRequest, m)
	}
	if sortOrder == "" {
		sortOrder = SortRelevance
	}
	if !sortOrder.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid sort order %q", domain.ErrInvalidRequest, sortOrder)
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Request{
		query:       query,
		entityTypes: entityTypes,
		searchMode:  m,
		sortOrder:   sortOrder,
		page:        page,
		limit:       limit,
		fuzzy:       fuzzy,
		filters:     filters,
		userID:      userID,
	}, nil
}

// Query returns the raw search query text.
func (r *Request) Query() string { return r.query }

// EntityTypes returns the entity type restriction (empty means all).
func (r *Request) EntityTypes() []string { return r.entityTypes }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Sort returns the requested result ordering.
func (r *Request) Sort() SortOrder { return r.sortOrder }

// Page returns the 1-based page number.
func (r *Request) Page() int { return r.page }

// Limit returns the page size.
func (r *Request) Limit() int { return r.limit }

// Fuzzy reports whether prefix-match query construction is requested.
func (r *Request) Fuzzy() bool { return r.fuzzy }

// Filters returns the metadata equality filters.
func (r *Request) Filters() map[string]string { return r.filters }

// UserID returns the optional caller identity for analytics.
func (r *Request) UserID() string { return r.userID }

// Offset returns the 0-based result offset for the requested page.
func (r *Request) Offset() int { return (r.page - 1) * r.limit }

// CanonicalKey returns a deterministic serialization of all request fields
// that affect the result set. Used as the response cache key.
func (r *Request) CanonicalKey() string {
	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(strings.ToLower(strings.TrimSpace(r.query)))

	types := append([]string(nil), r.entityTypes...)
	sort.Strings(types)
	b.WriteString("|t=")
	b.WriteString(strings.Join(types, ","))

	fmt.Fprintf(&b, "|m=%s|s=%s|p=%d|l=%d|f=%t", r.searchMode, r.sortOrder, r.page, r.limit, r.fuzzy)

	if len(r.filters) > 0 {
		keys := make([]string, 0, len(r.filters))
		for k := range r.filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("|mf=")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(r.filters[k])
		}
	}

	return b.String()
}
