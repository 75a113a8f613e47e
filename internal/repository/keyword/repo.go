// Package keyword implements the full-text document index over the store's
// FT.SEARCH layer with BM25 scoring.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alex-tgk/searchlight/internal/db"
	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/document"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
)

// maxFilterCandidates bounds the fetch window when metadata filters force
// in-memory post-filtering.
const maxFilterCandidates = 1000

// store is the consumer interface for the keyword index (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements the keyword full-text provider.
type Repo struct {
	store store
}

// New creates a keyword repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the document FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, domain.DocumentIndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", backendErr(err))
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     domain.DocumentIndexName,
		Prefixes: []string{domain.KeyPrefixDocument},
		Fields: []db.IndexField{
			{Name: "entity_type", Type: db.IndexFieldTag},
			{Name: "title", Type: db.IndexFieldText, TextWeight: 2},
			{Name: "content", Type: db.IndexFieldText},
			{Name: "rank", Type: db.IndexFieldNumeric},
			{Name: "created_at", Type: db.IndexFieldNumeric},
			{Name: "updated_at", Type: db.IndexFieldNumeric},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", backendErr(err))
	}
	return nil
}

// Search runs a BM25 query and returns hits with the backend total.
// An empty token list short-circuits to zero results without touching the
// backend. Connection failures surface as ErrBackendUnavailable. Metadata
// filters are applied in memory after the query.
func (r *Repo) Search(
	ctx context.Context,
	text string, entityTypes []string, filters map[string]string,
	fuzzy bool, offset, limit int,
) ([]result.Result, int, error) {
	queryStr := BuildQuery(text, fuzzy, entityTypes)
	if queryStr == "" {
		return nil, 0, nil
	}

	fetchOffset, fetchLimit := offset, limit
	if len(filters) > 0 {
		// The filtered window must start at zero and cover the requested
		// page after filtering.
		fetchOffset, fetchLimit = 0, maxFilterCandidates
	}

	res, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName: domain.DocumentIndexName,
		Query:     queryStr,
		Offset:    fetchOffset,
		Limit:     fetchLimit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("keyword search: %w", backendErr(err))
	}

	hits := make([]result.Result, 0, len(res.Entries))
	for _, entry := range res.Entries {
		hits = append(hits, hydrateResult(entry.Key, entry.Score, entry.Fields))
	}

	if len(filters) == 0 {
		return hits, res.Total, nil
	}

	filtered := filterByMetadata(hits, filters)
	total := len(filtered)
	filtered = page(filtered, offset, limit)
	return filtered, total, nil
}

// Count returns the number of documents matching a query without fetching them.
func (r *Repo) Count(ctx context.Context, text string, fuzzy bool, entityTypes []string) (int, error) {
	queryStr := BuildQuery(text, fuzzy, entityTypes)
	if queryStr == "" {
		return 0, nil
	}
	n, err := r.store.SearchCount(ctx, domain.DocumentIndexName, queryStr)
	if err != nil {
		return 0, fmt.Errorf("keyword count: %w", backendErr(err))
	}
	return n, nil
}

// IndexDocument upserts a document hash. On update the original createdAt and
// any existing vectorRef survive; updatedAt is always refreshed.
func (r *Repo) IndexDocument(ctx context.Context, doc document.Document) (document.Document, error) {
	key := doc.Key()

	existing, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return document.Document{}, fmt.Errorf("read existing %s: %w", key, backendErr(err))
	}

	if len(existing) > 0 {
		if createdAt := parseUnix(existing["created_at"]); !createdAt.IsZero() {
			doc = doc.WithTimestamps(createdAt, doc.UpdatedAt())
		}
		if doc.VectorRef() == "" && existing["vector_ref"] != "" {
			doc = doc.WithVectorRef(existing["vector_ref"])
		}
	}

	fields, err := docFields(&doc)
	if err != nil {
		return document.Document{}, err
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return document.Document{}, fmt.Errorf("index %s: %w", key, backendErr(err))
	}
	return doc, nil
}

// GetDocument fetches a document by identity. Missing documents yield
// ErrDocumentNotFound.
func (r *Repo) GetDocument(ctx context.Context, entityType, entityID string) (document.Document, error) {
	key := document.Key(entityType, entityID)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return document.Document{}, fmt.Errorf("get %s: %w", key, backendErr(err))
	}
	if len(fields) == 0 {
		return document.Document{}, domain.ErrDocumentNotFound
	}
	return hydrateDocument(entityType, entityID, fields), nil
}

// RemoveDocument deletes a document hash. Returns false (not an error) when
// the document was absent.
func (r *Repo) RemoveDocument(ctx context.Context, entityType, entityID string) (bool, error) {
	key := document.Key(entityType, entityID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, backendErr(err))
	}
	if !exists {
		return false, nil
	}
	if err := r.store.Del(ctx, key); err != nil {
		return false, fmt.Errorf("del %s: %w", key, backendErr(err))
	}
	return true, nil
}

// SetVectorRef records the semantic cross-reference on an indexed document.
func (r *Repo) SetVectorRef(ctx context.Context, entityType, entityID, vectorRef string) error {
	key := document.Key(entityType, entityID)
	if err := r.store.HSet(ctx, key, map[string]string{"vector_ref": vectorRef}); err != nil {
		return fmt.Errorf("set vector_ref %s: %w", key, backendErr(err))
	}
	return nil
}

// BulkIndex writes a chunk of documents in one pipelined round-trip. When the
// pipeline fails it retries per document so one bad write cannot sink the
// chunk. The returned map carries per-document failures keyed by storage key;
// an empty map means the whole chunk landed.
func (r *Repo) BulkIndex(ctx context.Context, docs []document.Document) map[string]error {
	if len(docs) == 0 {
		return nil
	}

	failures := make(map[string]error)
	items := make([]db.HashSetItem, 0, len(docs))
	for i := range docs {
		fields, err := docFields(&docs[i])
		if err != nil {
			failures[docs[i].Key()] = err
			continue
		}
		items = append(items, db.HashSetItem{Key: docs[i].Key(), Fields: fields})
	}

	if err := r.store.HSetMulti(ctx, items); err == nil {
		return failures
	}

	for _, item := range items {
		if err := r.store.HSet(ctx, item.Key, item.Fields); err != nil {
			failures[item.Key] = backendErr(err)
		}
	}
	return failures
}

// ListMissingVectorRefs scans for documents with no semantic cross-reference.
// Used by the background reconciler.
func (r *Repo) ListMissingVectorRefs(ctx context.Context, limit int) ([]document.Document, error) {
	keys, err := r.store.Scan(ctx, domain.KeyPrefixDocument+"*")
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", backendErr(err))
	}

	var docs []document.Document
	for _, key := range keys {
		if len(docs) >= limit {
			break
		}
		fields, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, backendErr(err))
		}
		if len(fields) == 0 || fields["vector_ref"] != "" {
			continue
		}
		entityType, entityID, ok := splitKey(key)
		if !ok {
			continue
		}
		docs = append(docs, hydrateDocument(entityType, entityID, fields))
	}
	return docs, nil
}

// HealthCheck reports backend reachability.
func (r *Repo) HealthCheck(ctx context.Context) bool {
	return r.store.Ping(ctx) == nil
}

// --- hash mapping ---

func docFields(doc *document.Document) (map[string]string, error) {
	fields := map[string]string{
		"entity_type": doc.EntityType(),
		"entity_id":   doc.EntityID(),
		"title":       doc.Title(),
		"content":     doc.Content(),
		"rank":        strconv.FormatFloat(doc.Rank(), 'g', -1, 64),
		"created_at":  strconv.FormatInt(doc.CreatedAt().Unix(), 10),
		"updated_at":  strconv.FormatInt(doc.UpdatedAt().Unix(), 10),
	}
	if doc.VectorRef() != "" {
		fields["vector_ref"] = doc.VectorRef()
	}
	if meta := doc.Metadata(); meta != nil {
		data, err := meta.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode metadata for %s: %w", doc.Key(), err)
		}
		fields["meta"] = string(data)
	}
	return fields, nil
}

func hydrateDocument(entityType, entityID string, fields map[string]string) document.Document {
	meta, _ := domain.ParseMetadata([]byte(fields["meta"]))
	rank, _ := strconv.ParseFloat(fields["rank"], 64)
	return document.Reconstruct(
		entityType, entityID,
		fields["title"], fields["content"],
		meta, rank, fields["vector_ref"],
		parseUnix(fields["created_at"]), parseUnix(fields["updated_at"]),
	)
}

func hydrateResult(key string, score float64, fields map[string]string) result.Result {
	entityType, entityID, _ := splitKey(key)
	if fields["entity_type"] != "" {
		entityType = fields["entity_type"]
	}
	if fields["entity_id"] != "" {
		entityID = fields["entity_id"]
	}
	meta, _ := domain.ParseMetadata([]byte(fields["meta"]))
	rank, _ := strconv.ParseFloat(fields["rank"], 64)
	return result.New(
		entityType, entityID,
		fields["title"], fields["content"],
		score, rank, meta,
		parseUnix(fields["created_at"]), parseUnix(fields["updated_at"]),
	)
}

func splitKey(key string) (entityType, entityID string, ok bool) {
	rest, found := strings.CutPrefix(key, domain.KeyPrefixDocument)
	if !found {
		return "", "", false
	}
	entityType, entityID, ok = strings.Cut(rest, ":")
	return entityType, entityID, ok
}

func parseUnix(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func filterByMetadata(hits []result.Result, filters map[string]string) []result.Result {
	out := hits[:0:0]
	for i := range hits {
		meta := hits[i].Metadata()
		match := true
		for k, want := range filters {
			if meta == nil || !meta.MatchesString(k, want) {
				match = false
				break
			}
		}
		if match {
			out = append(out, hits[i])
		}
	}
	return out
}

func page(hits []result.Result, offset, limit int) []result.Result {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}

// backendErr maps store-level failures onto the domain error taxonomy so the
// transport can answer 503 for connection loss.
func backendErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
}
