// Package vector stores embedding vectors in dedicated hashes and answers
// KNN similarity queries over them.
package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/alex-tgk/searchlight/internal/db"
	"github.com/alex-tgk/searchlight/internal/domain"
)

// store is the consumer interface for the vector index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements vector storage and similarity lookup.
type Repo struct {
	store store
	dim   int
}

// New creates a vector repository. dim is the embedding dimensionality the
// index is created with.
func New(s store, dim int) *Repo {
	return &Repo{store: s, dim: dim}
}

// EnsureIndex creates the HNSW vector FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, domain.VectorIndexName)
	if err != nil {
		return fmt.Errorf("check vector index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     domain.VectorIndexName,
		Prefixes: []string{domain.KeyPrefixVector},
		Fields: []db.IndexField{
			{Name: "entity_type", Type: db.IndexFieldTag},
			{Name: "entity_id", Type: db.IndexFieldTag},
			{
				Name:           "vector",
				Type:           db.IndexFieldVector,
				VectorAlgo:     db.VectorHNSW,
				VectorDim:      r.dim,
				VectorDistance: db.DistanceCosine,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// Upsert stores a vector hash under the given ref, tagged with the document
// identity it belongs to.
func (r *Repo) Upsert(ctx context.Context, ref, entityType, entityID string, vec []float32) error {
	if len(vec) != r.dim {
		return fmt.Errorf("vector dim %d does not match index dim %d", len(vec), r.dim)
	}
	key := domain.KeyPrefixVector + ref
	fields := map[string]string{
		"entity_type": entityType,
		"entity_id":   entityID,
		"vector":      encodeVector(vec),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("upsert vector %s: %w", key, err)
	}
	return nil
}

// Delete removes a vector hash. Returns false when the ref was absent.
func (r *Repo) Delete(ctx context.Context, ref string) (bool, error) {
	key := domain.KeyPrefixVector + ref
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check vector %s: %w", key, err)
	}
	if !exists {
		return false, nil
	}
	if err := r.store.Del(ctx, key); err != nil {
		return false, fmt.Errorf("delete vector %s: %w", key, err)
	}
	return true, nil
}

// SearchKNN returns the k nearest vectors to the query vector, optionally
// restricted to entity types. Scores are cosine similarities in [0,1].
func (r *Repo) SearchKNN(ctx context.Context, vec []float32, k int, entityTypes []string) ([]domain.VectorMatch, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    domain.VectorIndexName,
		Filter:       entityTypeFilter(entityTypes),
		Vector:       vec,
		K:            k,
		ReturnFields: []string{"entity_type", "entity_id"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	matches := make([]domain.VectorMatch, 0, len(res.Entries))
	for _, entry := range res.Entries {
		matches = append(matches, domain.VectorMatch{
			Ref:        strings.TrimPrefix(entry.Key, domain.KeyPrefixVector),
			EntityType: entry.Fields["entity_type"],
			EntityID:   entry.Fields["entity_id"],
			Score:      entry.Score,
		})
	}
	return matches, nil
}

func entityTypeFilter(entityTypes []string) string {
	if len(entityTypes) == 0 {
		return ""
	}
	escaped := make([]string, len(entityTypes))
	for i, t := range entityTypes {
		escaped[i] = db.EscapeTag(t)
	}
	return "@entity_type:{" + strings.Join(escaped, "|") + "}"
}

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
