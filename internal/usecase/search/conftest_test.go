package search

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/analytics"
	"github.com/alex-tgk/searchlight/internal/domain/document"
	"github.com/alex-tgk/searchlight/internal/domain/search/mode"
	"github.com/alex-tgk/searchlight/internal/domain/search/request"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// --- Mocks ---

type mockKeyword struct {
	hits  []result.Result
	total int
	err   error
	docs  map[string]document.Document
	// paged makes Search slice hits by offset/limit the way the backend
	// applies LIMIT over its relevance ranking.
	paged bool

	searchCalls int
	lastOffset  int
	lastLimit   int
}

func (m *mockKeyword) Search(
	_ context.Context, _ string, _ []string, _ map[string]string,
	_ bool, offset, limit int,
) ([]result.Result, int, error) {
	m.searchCalls++
	m.lastOffset, m.lastLimit = offset, limit
	hits := m.hits
	if m.paged {
		switch {
		case offset >= len(hits):
			hits = nil
		case offset+limit < len(hits):
			hits = hits[offset : offset+limit]
		default:
			hits = hits[offset:]
		}
	}
	return hits, m.total, m.err
}

func (m *mockKeyword) GetDocument(_ context.Context, entityType, entityID string) (document.Document, error) {
	doc, ok := m.docs[entityType+":"+entityID]
	if !ok {
		return document.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

type mockSemantic struct {
	enabled bool
	matches []domain.VectorMatch
	called  bool
}

func (m *mockSemantic) IsEnabled() bool { return m.enabled }

func (m *mockSemantic) Search(_ context.Context, _ string, _ int, _ []string) []domain.VectorMatch {
	m.called = true
	return m.matches
}

type mockSuggester struct {
	fallback    []string
	fallbackErr error
	learned     []string
}

func (m *mockSuggester) Fallback(_ context.Context, _ string, _ int) ([]string, error) {
	return m.fallback, m.fallbackErr
}

func (m *mockSuggester) LearnFromQuery(_ context.Context, query, _ string) {
	m.learned = append(m.learned, query)
}

type mockSink struct {
	entries []analytics.QueryLogEntry
	err     error
}

func (m *mockSink) AppendQuery(_ context.Context, entry analytics.QueryLogEntry) error {
	m.entries = append(m.entries, entry)
	return m.err
}

type mockCache struct {
	enabled bool
	page    result.Page
	hit     bool
	puts    int
}

func (m *mockCache) Enabled() bool { return m.enabled }

func (m *mockCache) Get(_ context.Context, _ string, _ []string) (result.Page, bool, error) {
	return m.page, m.hit, nil
}

func (m *mockCache) Put(_ context.Context, _ string, _ []string, page result.Page) error {
	m.puts++
	m.page = page
	return nil
}

// --- Helpers ---

var testWeights = Weights{Keyword: 0.4, Semantic: 0.3, Recency: 0.15, Popularity: 0.15}

func newTestService(kw *mockKeyword, sem *mockSemantic, sug *mockSuggester, sink *mockSink, cache *mockCache) *Service {
	svc := New(kw, sem, sug, sink, cache, testWeights, 3, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func makeRequest(t *testing.T, query string, m mode.Mode) *request.Request {
	t.Helper()
	req, err := request.New(query, nil, m, request.SortRelevance, 1, 20, true, nil, "")
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

func makeSortedRequest(t *testing.T, query string, m mode.Mode, sort request.SortOrder, page, limit int) *request.Request {
	t.Helper()
	req, err := request.New(query, nil, m, sort, page, limit, true, nil, "")
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

func makeHit(t *testing.T, entityID string, score float64, updatedAt time.Time) result.Result {
	t.Helper()
	return result.New("article", entityID, "title "+entityID, "content", score, 0, nil, updatedAt, updatedAt)
}

func makeDoc(t *testing.T, entityID string) document.Document {
	t.Helper()
	doc, err := document.New("article", entityID, "title "+entityID, "content", nil, 0, testNow)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return doc
}
