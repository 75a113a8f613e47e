// Package analytics persists query log entries and click signals as
// TTL-bounded hashes.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/analytics"
)

// store is the consumer interface for the analytics sink (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo implements the append-only analytics sink.
type Repo struct {
	store     store
	retention time.Duration
}

// New creates an analytics repository with the given record retention.
func New(s store, retention time.Duration) *Repo {
	return &Repo{store: s, retention: retention}
}

// AppendQuery writes one query log record.
func (r *Repo) AppendQuery(ctx context.Context, entry analytics.QueryLogEntry) error {
	key := domain.KeyPrefixQueryLog + entry.ID
	fields := map[string]string{
		"query":        entry.Query,
		"mode":         entry.Mode,
		"result_count": strconv.Itoa(entry.ResultCount),
		"had_results":  strconv.FormatBool(entry.HadResults),
		"duration_ms":  strconv.FormatInt(entry.DurationMS, 10),
		"at":           strconv.FormatInt(entry.At.Unix(), 10),
	}
	if len(entry.EntityTypes) > 0 {
		fields["entity_types"] = strings.Join(entry.EntityTypes, ",")
	}
	if len(entry.Filters) > 0 {
		// Marshal of map[string]string cannot fail.
		data, _ := json.Marshal(entry.Filters)
		fields["filters"] = string(data)
	}
	if entry.UserID != "" {
		fields["user_id"] = entry.UserID
	}
	return r.write(ctx, key, fields)
}

// AppendClick writes one result click record.
func (r *Repo) AppendClick(ctx context.Context, click analytics.ResultClick) error {
	key := domain.KeyPrefixClick + click.ID
	fields := map[string]string{
		"query_log_id": click.QueryLogID,
		"entity_type":  click.EntityType,
		"entity_id":    click.EntityID,
		"position":     strconv.Itoa(click.Position),
		"at":           strconv.FormatInt(click.At.Unix(), 10),
	}
	return r.write(ctx, key, fields)
}

func (r *Repo) write(ctx context.Context, key string, fields map[string]string) error {
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("append %s: %w", key, err)
	}
	if r.retention > 0 {
		if err := r.store.Expire(ctx, key, r.retention, true); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return nil
}
