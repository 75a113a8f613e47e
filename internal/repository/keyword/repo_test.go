package keyword

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alex-tgk/searchlight/internal/db"
	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/document"
)

func TestSearch_EmptyQueryShortCircuits(t *testing.T) {
	repo, ms := newTestRepo(t)
	called := false
	ms.searchBM25Fn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		called = true
		return &db.SearchResult{}, nil
	}

	hits, total, err := repo.Search(context.Background(), "?!", nil, nil, true, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 || total != 0 {
		t.Errorf("expected no hits, got %d (total %d)", len(hits), total)
	}
	if called {
		t.Error("backend must not be queried for an all-punctuation query")
	}
}

func TestSearch_BackendTotal(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if q.Offset != 20 || q.Limit != 10 {
			t.Errorf("expected backend pagination 20/10, got %d/%d", q.Offset, q.Limit)
		}
		return &db.SearchResult{
			Total: 57,
			Entries: []db.SearchEntry{
				{Key: "sl:doc:article:a-1", Score: 1.5, Fields: map[string]string{"title": "A"}},
			},
		}, nil
	}

	hits, total, err := repo.Search(context.Background(), "golang", nil, nil, true, 20, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 57 {
		t.Errorf("expected backend total 57, got %d", total)
	}
	if len(hits) != 1 || hits[0].EntityID() != "a-1" {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestSearch_MetadataFiltersAppliedInMemory(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if q.Offset != 0 {
			t.Errorf("filtered search must fetch from offset 0, got %d", q.Offset)
		}
		return &db.SearchResult{
			Total: 3,
			Entries: []db.SearchEntry{
				{Key: "sl:doc:article:en-1", Score: 3, Fields: map[string]string{"meta": `{"lang":"en"}`}},
				{Key: "sl:doc:article:de-1", Score: 2, Fields: map[string]string{"meta": `{"lang":"de"}`}},
				{Key: "sl:doc:article:en-2", Score: 1, Fields: map[string]string{"meta": `{"lang":"en"}`}},
			},
		}, nil
	}

	hits, total, err := repo.Search(context.Background(), "golang", nil,
		map[string]string{"lang": "en"}, true, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected filtered total 2, got %d", total)
	}
	if len(hits) != 2 || hits[0].EntityID() != "en-1" || hits[1].EntityID() != "en-2" {
		t.Errorf("unexpected filtered hits: %+v", hits)
	}
}

func TestSearch_ConnectionFailureMapsToBackendUnavailable(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchBM25Fn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		return nil, errors.New("connection refused")
	}

	_, _, err := repo.Search(context.Background(), "golang", nil, nil, true, 0, 10)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestIndexDocument_PreservesCreatedAtAndVectorRef(t *testing.T) {
	repo, ms := newTestRepo(t)
	created := testNow.Add(-72 * time.Hour)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{
			"title":      "old",
			"created_at": strconv.FormatInt(created.Unix(), 10),
			"vector_ref": "vec-keep",
		}, nil
	}
	var written map[string]string
	ms.hsetFn = func(_ context.Context, _ string, fields map[string]string) error {
		written = fields
		return nil
	}

	stored, err := repo.IndexDocument(context.Background(), testDocument(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.CreatedAt().Unix() != created.Unix() {
		t.Errorf("createdAt must survive an upsert: got %v", stored.CreatedAt())
	}
	if stored.VectorRef() != "vec-keep" {
		t.Errorf("vectorRef must survive an upsert: got %q", stored.VectorRef())
	}
	if written["vector_ref"] != "vec-keep" {
		t.Errorf("expected vector_ref written back, got %q", written["vector_ref"])
	}
	if written["updated_at"] != strconv.FormatInt(testNow.Unix(), 10) {
		t.Errorf("updatedAt must be refreshed, got %s", written["updated_at"])
	}
}

func TestGetDocument_Missing(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetDocument(context.Background(), "article", "nope")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestRemoveDocument_MissingIsNotAnError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }

	removed, err := repo.RemoveDocument(context.Background(), "article", "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed {
		t.Error("expected removed=false for an absent document")
	}
}

func TestRemoveDocument_Present(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	deleted := ""
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}

	removed, err := repo.RemoveDocument(context.Background(), "article", "a-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !removed || deleted != "sl:doc:article:a-1" {
		t.Errorf("expected delete of sl:doc:article:a-1, got removed=%v key=%q", removed, deleted)
	}
}

func TestBulkIndex_RetriesPerDocumentOnPipelineFailure(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		return errors.New("pipeline failed")
	}
	ms.hsetFn = func(_ context.Context, key string, _ map[string]string) error {
		if key == "sl:doc:article:bad" {
			return errors.New("write failed")
		}
		return nil
	}

	good := testDocument(t)
	bad, err := document.New("article", "bad", "t", "", nil, 0, testNow)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}

	failures := repo.BulkIndex(context.Background(), []document.Document{good, bad})
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if _, ok := failures["sl:doc:article:bad"]; !ok {
		t.Errorf("expected failure keyed by storage key, got %v", failures)
	}
}

func TestListMissingVectorRefs(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != "sl:doc:*" {
			t.Errorf("unexpected scan pattern %q", pattern)
		}
		return []string{"sl:doc:article:a-1", "sl:doc:article:a-2", "sl:doc:article:a-3"}, nil
	}
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key == "sl:doc:article:a-2" {
			return map[string]string{"title": "has vec", "vector_ref": "vec-1"}, nil
		}
		return map[string]string{"title": "no vec"}, nil
	}

	docs, err := repo.ListMissingVectorRefs(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents missing vector refs, got %d", len(docs))
	}
	for _, d := range docs {
		if d.VectorRef() != "" {
			t.Errorf("document %s should have no vector ref", d.Key())
		}
	}
}

func TestEnsureIndex_SkipsWhenPresent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	created := false
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		created = true
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("index must not be re-created when it already exists")
	}
}
