package searchcache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alex-tgk/searchlight/internal/db"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
)

// memStore is an in-memory KV store for tests.
type memStore struct {
	values map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memStore) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	n, _ := strconv.ParseInt(string(m.values[key]), 10, 64)
	n += val
	m.values[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func testPage() result.Page {
	return result.Page{
		Results: []result.PageItem{{EntityType: "article", EntityID: "a-1", Title: "A", Score: 0.9}},
		Total:   1, Page: 1, TotalPages: 1,
	}
}

func TestDisabledCache(t *testing.T) {
	repo := New(newMemStore(), 0)
	if repo.Enabled() {
		t.Fatal("zero TTL must disable the cache")
	}

	_, found, err := repo.Get(context.Background(), "q=x", nil)
	if err != nil || found {
		t.Errorf("disabled cache must always miss, got found=%v err=%v", found, err)
	}
}

func TestPutAndGet(t *testing.T) {
	repo := New(newMemStore(), time.Minute)
	ctx := context.Background()

	if err := repo.Put(ctx, "q=golang", []string{"article"}, testPage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	page, found, err := repo.Get(ctx, "q=golang", []string{"article"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected a cache hit")
	}
	if page.Total != 1 || len(page.Results) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Results[0].EntityID != "a-1" {
		t.Errorf("unexpected cached result: %+v", page.Results[0])
	}
}

func TestBumpEpoch_OrphansTypedEntries(t *testing.T) {
	repo := New(newMemStore(), time.Minute)
	ctx := context.Background()

	if err := repo.Put(ctx, "q=golang", []string{"article"}, testPage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.BumpEpoch(ctx, "article"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, found, err := repo.Get(ctx, "q=golang", []string{"article"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("entries for a bumped entity type must become misses")
	}
}

func TestBumpEpoch_OrphansGlobalEntries(t *testing.T) {
	repo := New(newMemStore(), time.Minute)
	ctx := context.Background()

	// Unrestricted search, cached under the global epoch.
	if err := repo.Put(ctx, "q=golang", nil, testPage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.BumpEpoch(ctx, "article"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, found, err := repo.Get(ctx, "q=golang", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("unrestricted entries must become misses after any index write")
	}
}

func TestBumpEpoch_LeavesOtherTypesAlone(t *testing.T) {
	repo := New(newMemStore(), time.Minute)
	ctx := context.Background()

	if err := repo.Put(ctx, "q=golang", []string{"book"}, testPage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.BumpEpoch(ctx, "article"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, found, err := repo.Get(ctx, "q=golang", []string{"book"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Error("entries for untouched entity types must survive")
	}
}

func TestGet_CorruptEntryIsAMiss(t *testing.T) {
	ms := newMemStore()
	repo := New(ms, time.Minute)
	ctx := context.Background()

	if err := repo.Put(ctx, "q=golang", nil, testPage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Corrupt every page entry in place.
	for k := range ms.values {
		if len(k) > len("sl:cache:page:") && k[:len("sl:cache:page:")] == "sl:cache:page:" {
			ms.values[k] = []byte("{not json")
		}
	}

	_, found, err := repo.Get(ctx, "q=golang", nil)
	if err != nil {
		t.Fatalf("corrupt entries must not error: %v", err)
	}
	if found {
		t.Error("corrupt entries must read as misses")
	}
}
