package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/document"
	"github.com/alex-tgk/searchlight/internal/domain/search/mode"
	"github.com/alex-tgk/searchlight/internal/domain/search/request"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
)

func TestSearch_KeywordMode(t *testing.T) {
	kw := &mockKeyword{
		hits:  []result.Result{makeHit(t, "a-1", 2.0, testNow), makeHit(t, "a-2", 1.0, testNow)},
		total: 42,
	}
	sem := &mockSemantic{enabled: true}
	sink := &mockSink{}
	svc := newTestService(kw, sem, &mockSuggester{}, sink, &mockCache{})

	page, logID, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 42 {
		t.Errorf("keyword mode must use the backend total, got %d", page.Total)
	}
	if len(page.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(page.Results))
	}
	if sem.called {
		t.Error("semantic backend must not be called in keyword mode")
	}
	if logID == "" {
		t.Error("expected a query log id")
	}
	if len(sink.entries) != 1 {
		t.Fatalf("expected exactly one analytics record, got %d", len(sink.entries))
	}
	if sink.entries[0].ID != logID {
		t.Error("returned log id must match the analytics record")
	}
}

func TestSearch_HybridDowngradesWhenSemanticDisabled(t *testing.T) {
	kw := &mockKeyword{hits: []result.Result{makeHit(t, "a-1", 2.0, testNow)}, total: 1}
	sem := &mockSemantic{enabled: false}
	sink := &mockSink{}
	svc := newTestService(kw, sem, &mockSuggester{}, sink, &mockCache{})

	_, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Hybrid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sem.called {
		t.Error("disabled semantic backend must not be dispatched")
	}
	if sink.entries[0].Mode != string(mode.Keyword) {
		t.Errorf("analytics must record the effective mode, got %q", sink.entries[0].Mode)
	}
}

func TestSearch_HybridFusesAndDedupes(t *testing.T) {
	updated := testNow.Add(-15 * 24 * time.Hour) // recency decay 0.5
	kw := &mockKeyword{
		hits:  []result.Result{makeHit(t, "both", 1.0, updated), makeHit(t, "kw-only", 1.0, updated)},
		total: 2,
		docs: map[string]document.Document{
			"article:sem-only": makeDoc(t, "sem-only"),
		},
	}
	sem := &mockSemantic{
		enabled: true,
		matches: []domain.VectorMatch{
			{Ref: "v1", EntityType: "article", EntityID: "both", Score: 0.8},
			{Ref: "v2", EntityType: "article", EntityID: "sem-only", Score: 0.9},
			{Ref: "v3", EntityType: "article", EntityID: "vanished", Score: 0.7},
		},
	}
	svc := newTestService(kw, sem, &mockSuggester{}, &mockSink{}, &mockCache{})

	page, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Hybrid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// both + kw-only + sem-only; the vanished document is dropped.
	if page.Total != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", page.Total)
	}
	seen := make(map[string]float64)
	for _, item := range page.Results {
		seen[item.EntityID] = item.Score
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct documents, got %v", seen)
	}
	if _, ok := seen["vanished"]; ok {
		t.Error("matches for removed documents must be dropped")
	}

	// both: 0.4*1.0 + 0.3*0.8 + 0.15*0.5 = 0.715
	wantBoth := 0.4*1.0 + 0.3*0.8 + 0.15*0.5
	if !almostEqual(seen["both"], wantBoth) {
		t.Errorf("fused score for dual-source hit: got %g, want %g", seen["both"], wantBoth)
	}
	// kw-only: 0.4*1.0 + 0.15*0.5 = 0.475
	if !almostEqual(seen["kw-only"], 0.4+0.15*0.5) {
		t.Errorf("fused score for keyword-only hit: got %g", seen["kw-only"])
	}
	if seen["both"] <= seen["kw-only"] {
		t.Error("a hit found by both providers must outrank a keyword-only hit")
	}
}

func TestSearch_SemanticModeStaysSemanticWhenDisabled(t *testing.T) {
	kw := &mockKeyword{hits: []result.Result{makeHit(t, "a-1", 2.0, testNow)}, total: 1}
	sem := &mockSemantic{enabled: false}
	sug := &mockSuggester{}
	svc := newTestService(kw, sem, sug, &mockSink{}, &mockCache{})

	page, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Semantic))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 0 {
		t.Error("explicit semantic mode with a disabled backend must return empty results")
	}
	if kw.searchCalls != 0 {
		t.Error("explicit semantic mode must not fall back to keyword search")
	}
}

func TestSearch_KeywordFailureIsFatal(t *testing.T) {
	kw := &mockKeyword{err: domain.ErrBackendUnavailable}
	sink := &mockSink{}
	svc := newTestService(kw, &mockSemantic{}, &mockSuggester{}, sink, &mockCache{})

	_, logID, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword))
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if logID == "" {
		t.Error("failed searches still get a query log id")
	}
	if len(sink.entries) != 1 || sink.entries[0].HadResults {
		t.Errorf("failed search must write one analytics record with no results, got %+v", sink.entries)
	}
}

func TestSearch_SuggestionFallbackBelowThreshold(t *testing.T) {
	kw := &mockKeyword{hits: []result.Result{makeHit(t, "a-1", 1.0, testNow)}, total: 1}
	sug := &mockSuggester{fallback: []string{"golang", "goland"}}
	svc := newTestService(kw, &mockSemantic{}, sug, &mockSink{}, &mockCache{})

	page, _, err := svc.Search(context.Background(), makeRequest(t, "golnag", mode.Keyword))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Suggestions) != 2 {
		t.Errorf("expected fallback suggestions below the threshold, got %v", page.Suggestions)
	}
}

func TestSearch_NoFallbackAtThreshold(t *testing.T) {
	kw := &mockKeyword{
		hits: []result.Result{
			makeHit(t, "a-1", 3.0, testNow),
			makeHit(t, "a-2", 2.0, testNow),
			makeHit(t, "a-3", 1.0, testNow),
		},
		total: 3,
	}
	sug := &mockSuggester{fallback: []string{"unwanted"}}
	svc := newTestService(kw, &mockSemantic{}, sug, &mockSink{}, &mockCache{})

	page, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Suggestions) != 0 {
		t.Errorf("no suggestions expected at the threshold, got %v", page.Suggestions)
	}
}

func TestSearch_NoFallbackForBlankQuery(t *testing.T) {
	kw := &mockKeyword{}
	sug := &mockSuggester{fallback: []string{"unwanted"}}
	svc := newTestService(kw, &mockSemantic{}, sug, &mockSink{}, &mockCache{})

	page, _, err := svc.Search(context.Background(), makeRequest(t, "   ", mode.Keyword))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Suggestions) != 0 {
		t.Errorf("blank queries must not trigger the fallback, got %v", page.Suggestions)
	}
}

func TestSearch_LearnsFromSuccessfulQueries(t *testing.T) {
	kw := &mockKeyword{hits: []result.Result{makeHit(t, "a-1", 1.0, testNow)}, total: 1}
	sug := &mockSuggester{}
	svc := newTestService(kw, &mockSemantic{}, sug, &mockSink{}, &mockCache{})

	if _, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sug.learned) != 1 || sug.learned[0] != "golang" {
		t.Errorf("expected the query to be learned, got %v", sug.learned)
	}
}

func TestSearch_DoesNotLearnFromEmptyResults(t *testing.T) {
	kw := &mockKeyword{}
	sug := &mockSuggester{}
	svc := newTestService(kw, &mockSemantic{}, sug, &mockSink{}, &mockCache{})

	if _, _, err := svc.Search(context.Background(), makeRequest(t, "zzzz", mode.Keyword)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sug.learned) != 0 {
		t.Errorf("queries with no results must not be learned, got %v", sug.learned)
	}
}

func TestSearch_CacheHitSkipsBackends(t *testing.T) {
	kw := &mockKeyword{}
	cached := result.Page{Results: []result.PageItem{{EntityType: "article", EntityID: "c-1"}}, Total: 1}
	cache := &mockCache{enabled: true, page: cached, hit: true}
	sink := &mockSink{}
	svc := newTestService(kw, &mockSemantic{}, &mockSuggester{}, sink, cache)

	page, logID, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kw.searchCalls != 0 {
		t.Error("cache hits must not touch the backend")
	}
	if page.Total != 1 || page.Results[0].EntityID != "c-1" {
		t.Errorf("expected the cached page, got %+v", page)
	}
	if logID == "" || len(sink.entries) != 1 {
		t.Error("cached searches still write one analytics record")
	}
}

func TestSearch_CachePopulatedOnMiss(t *testing.T) {
	kw := &mockKeyword{
		hits: []result.Result{
			makeHit(t, "a-1", 3.0, testNow),
			makeHit(t, "a-2", 2.0, testNow),
			makeHit(t, "a-3", 1.0, testNow),
		},
		total: 3,
	}
	cache := &mockCache{enabled: true}
	svc := newTestService(kw, &mockSemantic{}, &mockSuggester{}, &mockSink{}, cache)

	if _, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.puts != 1 {
		t.Errorf("expected the page cached once, got %d puts", cache.puts)
	}
}

func TestSearch_AnalyticsFailureIsSwallowed(t *testing.T) {
	kw := &mockKeyword{hits: []result.Result{makeHit(t, "a-1", 1.0, testNow)}, total: 1}
	sink := &mockSink{err: errors.New("sink down")}
	svc := newTestService(kw, &mockSemantic{}, &mockSuggester{}, sink, &mockCache{})

	if _, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword)); err != nil {
		t.Fatalf("analytics failures must not fail the search: %v", err)
	}
}

func TestSearch_PaginationTotals(t *testing.T) {
	kw := &mockKeyword{hits: []result.Result{makeHit(t, "a-1", 1.0, testNow)}, total: 45}
	svc := newTestService(kw, &mockSemantic{}, &mockSuggester{}, &mockSink{}, &mockCache{})

	req, err := request.New("golang", nil, mode.Keyword, request.SortRelevance, 3, 20, true, nil, "")
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	page, _, err := svc.Search(context.Background(), &req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Page != 3 {
		t.Errorf("expected page 3, got %d", page.Page)
	}
	if page.TotalPages != 3 { // ceil(45/20)
		t.Errorf("expected 3 total pages, got %d", page.TotalPages)
	}
	if kw.lastOffset != 40 || kw.lastLimit != 20 {
		t.Errorf("expected backend pagination 40/20, got %d/%d", kw.lastOffset, kw.lastLimit)
	}
}

func TestSearch_KeywordDateSortOrdersAcrossPages(t *testing.T) {
	// Backend relevance ranking: a, b, c. By update time: c, a, b.
	kw := &mockKeyword{
		hits: []result.Result{
			makeHit(t, "a", 0.9, testNow.Add(-48*time.Hour)),
			makeHit(t, "b", 0.8, testNow.Add(-72*time.Hour)),
			makeHit(t, "c", 0.7, testNow),
		},
		total: 3,
		paged: true,
	}
	svc := newTestService(kw, &mockSemantic{}, &mockSuggester{}, &mockSink{}, &mockCache{})

	page, _, err := svc.Search(context.Background(),
		makeSortedRequest(t, "golang", mode.Keyword, request.SortDateDesc, 1, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kw.lastOffset != 0 || kw.lastLimit != candidateLimit {
		t.Errorf("sorted keyword search must fetch the candidate window, got %d/%d",
			kw.lastOffset, kw.lastLimit)
	}
	if len(page.Results) != 2 || page.Results[0].EntityID != "c" || page.Results[1].EntityID != "a" {
		t.Fatalf("page 1 must hold the newest documents, got %+v", page.Results)
	}
	if page.Total != 3 {
		t.Errorf("expected backend total, got %d", page.Total)
	}

	page, _, err = svc.Search(context.Background(),
		makeSortedRequest(t, "golang", mode.Keyword, request.SortDateDesc, 2, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].EntityID != "b" {
		t.Errorf("page 2 must hold the oldest document, got %+v", page.Results)
	}
}

func TestSearch_PageCarriesLimitCreatedAtAndTiming(t *testing.T) {
	created := testNow.Add(-24 * time.Hour)
	kw := &mockKeyword{hits: []result.Result{makeHit(t, "a-1", 1.0, created)}, total: 1}
	svc := newTestService(kw, &mockSemantic{}, &mockSuggester{}, &mockSink{}, &mockCache{})
	calls := 0
	svc.now = func() time.Time {
		calls++
		if calls == 1 {
			return testNow
		}
		return testNow.Add(7 * time.Millisecond)
	}

	page, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Limit != 20 {
		t.Errorf("expected the request limit echoed, got %d", page.Limit)
	}
	if page.ExecutionTimeMS != 7 {
		t.Errorf("expected 7ms execution time, got %d", page.ExecutionTimeMS)
	}
	if !page.Results[0].CreatedAt.Equal(created) {
		t.Errorf("expected createdAt carried into the page, got %v", page.Results[0].CreatedAt)
	}
}

func TestSearch_CacheHitReportsOwnTiming(t *testing.T) {
	cached := result.Page{
		Results:         []result.PageItem{{EntityType: "article", EntityID: "c-1"}},
		Total:           1,
		ExecutionTimeMS: 999,
	}
	cache := &mockCache{enabled: true, page: cached, hit: true}
	svc := newTestService(&mockKeyword{}, &mockSemantic{}, &mockSuggester{}, &mockSink{}, cache)
	calls := 0
	svc.now = func() time.Time {
		calls++
		if calls == 1 {
			return testNow
		}
		return testNow.Add(3 * time.Millisecond)
	}

	page, _, err := svc.Search(context.Background(), makeRequest(t, "golang", mode.Keyword))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.ExecutionTimeMS != 3 {
		t.Errorf("cached responses must report the serving request's time, got %d", page.ExecutionTimeMS)
	}
}

func TestSearch_AnalyticsRecordsFilters(t *testing.T) {
	kw := &mockKeyword{hits: []result.Result{makeHit(t, "a-1", 1.0, testNow)}, total: 1}
	sink := &mockSink{}
	svc := newTestService(kw, &mockSemantic{}, &mockSuggester{}, sink, &mockCache{})

	filters := map[string]string{"author": "pike"}
	req, err := request.New("golang", nil, mode.Keyword, request.SortRelevance, 1, 20, true, filters, "")
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	if _, _, err := svc.Search(context.Background(), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.entries) != 1 {
		t.Fatalf("expected one analytics record, got %d", len(sink.entries))
	}
	if got := sink.entries[0].Filters; len(got) != 1 || got["author"] != "pike" {
		t.Errorf("expected filters recorded, got %v", got)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
