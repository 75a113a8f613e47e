// Package searchcache caches materialized search response pages with TTL and
// epoch-based invalidation. Index writes bump the epoch for the affected
// entity type, which orphans every cached page built under the old epoch.
package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alex-tgk/searchlight/internal/db"
	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
)

// store is the consumer interface for the response cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// Repo implements the search response cache.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a response cache with the given entry TTL. A zero TTL disables
// the cache entirely.
func New(s store, ttl time.Duration) *Repo {
	return &Repo{store: s, ttl: ttl}
}

// Enabled reports whether caching is active.
func (r *Repo) Enabled() bool {
	return r.ttl > 0
}

// Get returns the cached page for a canonical request key, or found=false.
func (r *Repo) Get(ctx context.Context, canonicalKey string, entityTypes []string) (result.Page, bool, error) {
	if !r.Enabled() {
		return result.Page{}, false, nil
	}

	key, err := r.entryKey(ctx, canonicalKey, entityTypes)
	if err != nil {
		return result.Page{}, false, err
	}

	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return result.Page{}, false, nil
		}
		return result.Page{}, false, fmt.Errorf("cache get: %w", err)
	}

	var page result.Page
	if err := json.Unmarshal(data, &page); err != nil {
		// Stale or corrupt entry: treat as a miss.
		return result.Page{}, false, nil
	}
	return page, true, nil
}

// Put stores a page under the canonical request key at the current epoch.
func (r *Repo) Put(ctx context.Context, canonicalKey string, entityTypes []string, page result.Page) error {
	if !r.Enabled() {
		return nil
	}

	key, err := r.entryKey(ctx, canonicalKey, entityTypes)
	if err != nil {
		return err
	}

	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := r.store.SetWithTTL(ctx, key, data, r.ttl); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// BumpEpoch invalidates cached pages touching the given entity type. The
// global epoch moves too, so unrestricted searches also refresh.
func (r *Repo) BumpEpoch(ctx context.Context, entityType string) error {
	if !r.Enabled() {
		return nil
	}
	if _, err := r.store.IncrBy(ctx, epochKey("type:"+entityType), 1); err != nil {
		return fmt.Errorf("bump type epoch: %w", err)
	}
	if _, err := r.store.IncrBy(ctx, epochKey("global"), 1); err != nil {
		return fmt.Errorf("bump global epoch: %w", err)
	}
	return nil
}

// entryKey derives the storage key from the canonical request key and the
// epochs of every entity type the request can see.
func (r *Repo) entryKey(ctx context.Context, canonicalKey string, entityTypes []string) (string, error) {
	epochs, err := r.epochs(ctx, entityTypes)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonicalKey + "|" + epochs))
	return domain.KeyPrefixCache + "page:" + hex.EncodeToString(sum[:16]), nil
}

func (r *Repo) epochs(ctx context.Context, entityTypes []string) (string, error) {
	if len(entityTypes) == 0 {
		n, err := r.epoch(ctx, epochKey("global"))
		if err != nil {
			return "", err
		}
		return "g" + strconv.FormatInt(n, 10), nil
	}

	types := append([]string(nil), entityTypes...)
	sort.Strings(types)
	parts := make([]string, len(types))
	for i, t := range types {
		n, err := r.epoch(ctx, epochKey("type:"+t))
		if err != nil {
			return "", err
		}
		parts[i] = t + ":" + strconv.FormatInt(n, 10)
	}
	return strings.Join(parts, ","), nil
}

func (r *Repo) epoch(ctx context.Context, key string) (int64, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read epoch %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func epochKey(suffix string) string {
	return domain.KeyPrefixCache + "epoch:" + suffix
}
