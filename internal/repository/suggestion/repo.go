// Package suggestion persists learned autocomplete terms as hashes with
// atomic frequency counters.
package suggestion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/suggestion"
)

// store is the consumer interface for suggestion terms (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, val int64) (int64, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the suggestion term store.
type Repo struct {
	store store
}

// New creates a suggestion repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Increment bumps a term's frequency atomically and refreshes its last-used
// timestamp. Creates the term on first observation.
func (r *Repo) Increment(ctx context.Context, term, entityType string, now time.Time) error {
	key := termKey(term)
	if _, err := r.store.HIncrBy(ctx, key, "frequency", 1); err != nil {
		return fmt.Errorf("increment %s: %w", key, err)
	}
	fields := map[string]string{
		"term":      term,
		"last_used": strconv.FormatInt(now.Unix(), 10),
	}
	if entityType != "" {
		fields["entity_type"] = entityType
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("touch %s: %w", key, err)
	}
	return nil
}

// Prefix returns terms starting with the given normalized prefix.
func (r *Repo) Prefix(ctx context.Context, prefix string) ([]suggestion.Term, error) {
	return r.match(ctx, domain.KeyPrefixSuggestion+escapeGlob(prefix)+"*", func(string) bool { return true })
}

// Containing returns terms containing the given normalized substring.
// Used by the sparse-result fallback.
func (r *Repo) Containing(ctx context.Context, substr string) ([]suggestion.Term, error) {
	return r.match(ctx, domain.KeyPrefixSuggestion+"*", func(term string) bool {
		return strings.Contains(term, substr)
	})
}

// Prune removes terms older than maxAge whose frequency stayed below
// minFrequency. Returns the number of removed terms.
func (r *Repo) Prune(ctx context.Context, maxAge time.Duration, minFrequency int64, now time.Time) (int, error) {
	terms, err := r.match(ctx, domain.KeyPrefixSuggestion+"*", func(string) bool { return true })
	if err != nil {
		return 0, err
	}

	removed := 0
	cutoff := now.Add(-maxAge)
	for i := range terms {
		if terms[i].LastUsed().After(cutoff) || terms[i].Frequency() >= minFrequency {
			continue
		}
		if err := r.store.Del(ctx, termKey(terms[i].Text())); err != nil {
			return removed, fmt.Errorf("prune %s: %w", terms[i].Text(), err)
		}
		removed++
	}
	return removed, nil
}

func (r *Repo) match(ctx context.Context, pattern string, keep func(term string) bool) ([]suggestion.Term, error) {
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("scan suggestions: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("read suggestions: %w", err)
	}

	terms := make([]suggestion.Term, 0, len(hashes))
	for _, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		term := hydrate(fields)
		if keep(term.Text()) {
			terms = append(terms, term)
		}
	}
	return terms, nil
}

func hydrate(fields map[string]string) suggestion.Term {
	freq, _ := strconv.ParseInt(fields["frequency"], 10, 64)
	var lastUsed time.Time
	if sec, err := strconv.ParseInt(fields["last_used"], 10, 64); err == nil {
		lastUsed = time.Unix(sec, 0).UTC()
	}
	return suggestion.New(fields["term"], fields["entity_type"], freq, lastUsed)
}

func termKey(term string) string {
	return domain.KeyPrefixSuggestion + term
}

// escapeGlob escapes SCAN MATCH glob metacharacters in a term prefix.
var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
