// Package search orchestrates keyword and semantic retrieval into one ranked,
// paginated response.
package search

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/analytics"
	"github.com/alex-tgk/searchlight/internal/domain/search/mode"
	"github.com/alex-tgk/searchlight/internal/domain/search/request"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
	"github.com/alex-tgk/searchlight/internal/metrics"
)

const (
	// candidateLimit is the fused candidate window for hybrid and semantic
	// modes. Pages beyond it fall off the end of the fused set.
	candidateLimit = 200
	// maxExcerptChars bounds rendered result excerpts.
	maxExcerptChars = 200
	// maxFallbackSuggestions caps the sparse-result suggestion list.
	maxFallbackSuggestions = 5
)

// Service is the search orchestrator.
type Service struct {
	keyword   KeywordProvider
	semantic  SemanticClient
	suggest   Suggester
	analytics AnalyticsSink
	cache     ResponseCache
	weights   Weights
	threshold int // result count below which suggestions kick in
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a search orchestrator.
func New(
	kw KeywordProvider,
	sem SemanticClient,
	sug Suggester,
	sink AnalyticsSink,
	cache ResponseCache,
	weights Weights,
	suggestionThreshold int,
	logger *zap.Logger,
) *Service {
	return &Service{
		keyword:   kw,
		semantic:  sem,
		suggest:   sug,
		analytics: sink,
		cache:     cache,
		weights:   weights,
		threshold: suggestionThreshold,
		logger:    logger,
		now:       time.Now,
	}
}

// Search executes one search request end to end: cache probe, concurrent
// dispatch, fusion, sort, pagination, suggestion fallback, analytics. The
// returned string is the query log id for click linking. Every executed
// search writes exactly one analytics record, including failed and cached
// ones.
func (s *Service) Search(ctx context.Context, req *request.Request) (result.Page, string, error) {
	start := s.now()
	m := s.effectiveMode(req)

	if page, ok := s.cacheGet(ctx, req); ok {
		page.ExecutionTimeMS = s.now().Sub(start).Milliseconds()
		metrics.SearchRequestsTotal.WithLabelValues(string(m), "success").Inc()
		logID := s.track(ctx, req, m, len(page.Results), start)
		return page, logID, nil
	}

	page, err := s.execute(ctx, req, m)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(m), "error").Inc()
		logID := s.track(ctx, req, m, 0, start)
		return result.Page{}, logID, err
	}

	if len(page.Results) < s.threshold && strings.TrimSpace(req.Query()) != "" {
		page.Suggestions = s.fallbackSuggestions(ctx, req.Query())
	}

	if len(page.Results) > 0 {
		s.suggest.LearnFromQuery(ctx, req.Query(), firstOrEmpty(req.EntityTypes()))
	}

	page.ExecutionTimeMS = s.now().Sub(start).Milliseconds()
	s.cachePut(ctx, req, page)

	metrics.SearchRequestsTotal.WithLabelValues(string(m), "success").Inc()
	metrics.SearchDuration.WithLabelValues(string(m)).Observe(s.now().Sub(start).Seconds())
	logID := s.track(ctx, req, m, len(page.Results), start)
	return page, logID, nil
}

// effectiveMode downgrades semantic-dependent modes when the backend is not
// configured: hybrid falls back to keyword, semantic stays (and returns
// empty) so the caller sees the degradation.
func (s *Service) effectiveMode(req *request.Request) mode.Mode {
	if req.Mode() == mode.Hybrid && !s.semantic.IsEnabled() {
		return mode.Keyword
	}
	return req.Mode()
}

func (s *Service) execute(ctx context.Context, req *request.Request, m mode.Mode) (result.Page, error) {
	switch m {
	case mode.Keyword:
		return s.searchKeyword(ctx, req)
	case mode.Semantic:
		return s.searchSemantic(ctx, req)
	default:
		return s.searchHybrid(ctx, req)
	}
}

// searchKeyword paginates directly on the backend for relevance ordering;
// total comes from the backend's match count. Any other order must be applied
// over the candidate window before slicing the page, the way hybrid does it:
// paginating on the backend's relevance ranking and reordering a single page
// would leave page boundaries in relevance order.
func (s *Service) searchKeyword(ctx context.Context, req *request.Request) (result.Page, error) {
	if req.Sort() == request.SortRelevance {
		hits, total, err := s.keyword.Search(
			ctx, req.Query(), req.EntityTypes(), req.Filters(),
			req.Fuzzy(), req.Offset(), req.Limit(),
		)
		if err != nil {
			return result.Page{}, err
		}
		sortResults(hits, req.Sort())
		return s.makePage(req, hits, total), nil
	}

	hits, total, err := s.keyword.Search(
		ctx, req.Query(), req.EntityTypes(), req.Filters(),
		req.Fuzzy(), 0, s.candidateWindow(req),
	)
	if err != nil {
		return result.Page{}, err
	}
	sortResults(hits, req.Sort())
	return s.makePage(req, pageSlice(hits, req.Offset(), req.Limit()), total), nil
}

// searchSemantic resolves KNN matches back to documents. Matches whose
// document has been removed since indexing are dropped.
func (s *Service) searchSemantic(ctx context.Context, req *request.Request) (result.Page, error) {
	matches := s.semantic.Search(ctx, req.Query(), s.candidateWindow(req), req.EntityTypes())

	hits := make([]result.Result, 0, len(matches))
	for _, m := range matches {
		hit, ok := s.resolve(ctx, m.EntityType, m.EntityID)
		if !ok {
			continue
		}
		hits = append(hits, hit.WithScore(m.Score))
	}

	sortResults(hits, req.Sort())
	total := len(hits)
	return s.makePage(req, pageSlice(hits, req.Offset(), req.Limit()), total), nil
}

// searchHybrid dispatches both providers concurrently and fuses the full
// candidate sets. A keyword failure is fatal; a semantic failure already
// degraded to an empty match list inside the client.
func (s *Service) searchHybrid(ctx context.Context, req *request.Request) (result.Page, error) {
	window := s.candidateWindow(req)

	var (
		wg      sync.WaitGroup
		kwHits  []result.Result
		kwErr   error
		matches []domain.VectorMatch
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		kwHits, _, kwErr = s.keyword.Search(
			ctx, req.Query(), req.EntityTypes(), req.Filters(),
			req.Fuzzy(), 0, window,
		)
	}()
	go func() {
		defer wg.Done()
		matches = s.semantic.Search(ctx, req.Query(), window, req.EntityTypes())
	}()
	wg.Wait()

	if kwErr != nil {
		return result.Page{}, kwErr
	}

	fused := fuseHybrid(kwHits, matches, func(entityType, entityID string) (result.Result, bool) {
		return s.resolve(ctx, entityType, entityID)
	}, s.weights, s.now())

	sortResults(fused, req.Sort())
	total := len(fused)
	return s.makePage(req, pageSlice(fused, req.Offset(), req.Limit()), total), nil
}

func (s *Service) candidateWindow(req *request.Request) int {
	if need := req.Offset() + req.Limit(); need > candidateLimit {
		return need
	}
	return candidateLimit
}

func (s *Service) resolve(ctx context.Context, entityType, entityID string) (result.Result, bool) {
	doc, err := s.keyword.GetDocument(ctx, entityType, entityID)
	if err != nil {
		return result.Result{}, false
	}
	return result.New(
		doc.EntityType(), doc.EntityID(), doc.Title(), doc.Content(),
		0, doc.Rank(), doc.Metadata(), doc.CreatedAt(), doc.UpdatedAt(),
	), true
}

func (s *Service) fallbackSuggestions(ctx context.Context, query string) []string {
	suggestions, err := s.suggest.Fallback(ctx, query, maxFallbackSuggestions)
	if err != nil {
		// Best effort: sparse results without suggestions are still a
		// valid response.
		s.logger.Warn("suggestion fallback failed", zap.Error(err))
		return nil
	}
	if len(suggestions) > 0 {
		metrics.SuggestionFallbackTotal.Inc()
	}
	return suggestions
}

// track writes the query log entry. Analytics failures are logged and
// swallowed: they must never fail a search.
func (s *Service) track(
	ctx context.Context, req *request.Request, m mode.Mode,
	resultCount int, start time.Time,
) string {
	entry := analytics.QueryLogEntry{
		ID:          uuid.NewString(),
		Query:       req.Query(),
		Mode:        string(m),
		EntityTypes: req.EntityTypes(),
		Filters:     req.Filters(),
		ResultCount: resultCount,
		HadResults:  resultCount > 0,
		DurationMS:  s.now().Sub(start).Milliseconds(),
		UserID:      req.UserID(),
		At:          start,
	}
	if err := s.analytics.AppendQuery(ctx, entry); err != nil {
		s.logger.Warn("query log write failed", zap.String("id", entry.ID), zap.Error(err))
	}
	return entry.ID
}

func (s *Service) cacheGet(ctx context.Context, req *request.Request) (result.Page, bool) {
	if !s.cache.Enabled() {
		return result.Page{}, false
	}
	page, ok, err := s.cache.Get(ctx, req.CanonicalKey(), req.EntityTypes())
	if err != nil {
		s.logger.Warn("cache read failed", zap.Error(err))
		return result.Page{}, false
	}
	if ok {
		metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.SearchCacheTotal.WithLabelValues("miss").Inc()
	}
	return page, ok
}

func (s *Service) cachePut(ctx context.Context, req *request.Request, page result.Page) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Put(ctx, req.CanonicalKey(), req.EntityTypes(), page); err != nil {
		s.logger.Warn("cache write failed", zap.Error(err))
	}
}

func (s *Service) makePage(req *request.Request, hits []result.Result, total int) result.Page {
	items := make([]result.PageItem, 0, len(hits))
	for i := range hits {
		items = append(items, result.PageItem{
			EntityType: hits[i].EntityType(),
			EntityID:   hits[i].EntityID(),
			Title:      hits[i].Title(),
			Excerpt:    excerpt(hits[i].Content()),
			Score:      hits[i].Score(),
			Metadata:   hits[i].Metadata(),
			CreatedAt:  hits[i].CreatedAt(),
			UpdatedAt:  hits[i].UpdatedAt(),
		})
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + req.Limit() - 1) / req.Limit()
	}

	return result.Page{
		Results:    items,
		Total:      total,
		Page:       req.Page(),
		Limit:      req.Limit(),
		TotalPages: totalPages,
	}
}

func firstOrEmpty(types []string) string {
	if len(types) == 1 {
		return types[0]
	}
	return ""
}

func pageSlice(hits []result.Result, offset, limit int) []result.Result {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}

// excerpt truncates content to maxExcerptChars runes on a rune boundary.
func excerpt(content string) string {
	if utf8.RuneCountInString(content) <= maxExcerptChars {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxExcerptChars-1]) + "…"
}
