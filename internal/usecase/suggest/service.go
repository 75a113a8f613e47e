// Package suggest implements autocomplete: term lookup, query learning, and
// stale-term cleanup.
package suggest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alex-tgk/searchlight/internal/domain/suggestion"
)

// Lookup limits.
const (
	DefaultLimit = 10
	MaxLimit     = 20
	minTokenLen  = 2
)

// termStore is the persistence contract for suggestion terms.
type termStore interface {
	Increment(ctx context.Context, term, entityType string, now time.Time) error
	Prefix(ctx context.Context, prefix string) ([]suggestion.Term, error)
	Containing(ctx context.Context, substr string) ([]suggestion.Term, error)
	Prune(ctx context.Context, maxAge time.Duration, minFrequency int64, now time.Time) (int, error)
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "is": true,
	"are": true, "was": true, "be": true, "as": true, "it": true,
	"this": true, "that": true, "from": true,
}

// Service is the suggestion store.
type Service struct {
	store  termStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates a suggestion service.
func New(store termStore, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// GetSuggestions returns terms starting with the given prefix, ordered by
// frequency descending then recency descending. An empty prefix yields nil.
// A non-empty entityType keeps only terms learned for that entity type.
func (s *Service) GetSuggestions(ctx context.Context, prefix, entityType string, limit int) ([]suggestion.Term, error) {
	prefix = normalize(prefix)
	if prefix == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	terms, err := s.store.Prefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("prefix lookup: %w", err)
	}

	if entityType != "" {
		filtered := terms[:0]
		for _, t := range terms {
			if t.EntityType() == entityType {
				filtered = append(filtered, t)
			}
		}
		terms = filtered
	}

	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Frequency() != terms[j].Frequency() {
			return terms[i].Frequency() > terms[j].Frequency()
		}
		return terms[i].LastUsed().After(terms[j].LastUsed())
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms, nil
}

// Fallback returns alternative terms containing any token of a query that
// came back sparse, ordered by decayed score. Best effort.
func (s *Service) Fallback(ctx context.Context, query string, limit int) ([]string, error) {
	tokens := learnableTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	now := s.now()
	seen := make(map[string]bool)
	var terms []suggestion.Term
	for _, tok := range tokens {
		found, err := s.store.Containing(ctx, tok)
		if err != nil {
			return nil, fmt.Errorf("contains lookup: %w", err)
		}
		for _, t := range found {
			if seen[t.Text()] {
				continue
			}
			seen[t.Text()] = true
			terms = append(terms, t)
		}
	}

	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Score(now) > terms[j].Score(now)
	})

	out := make([]string, 0, limit)
	for i := range terms {
		if len(out) >= limit {
			break
		}
		out = append(out, terms[i].Text())
	}
	return out, nil
}

// LearnFromQuery records the learnable tokens of an executed query. Stop
// words and tokens shorter than two characters are skipped. Per-token write
// failures are logged and do not stop the rest.
func (s *Service) LearnFromQuery(ctx context.Context, query, entityType string) {
	now := s.now()
	for _, tok := range learnableTokens(query) {
		if err := s.store.Increment(ctx, tok, entityType, now); err != nil {
			s.logger.Warn("suggestion learn failed",
				zap.String("term", tok),
				zap.Error(err),
			)
		}
	}
}

// Cleanup removes terms unused beyond maxAge whose frequency stayed below
// minFrequency. Returns the number of removed terms.
func (s *Service) Cleanup(ctx context.Context, maxAge time.Duration, minFrequency int64) (int, error) {
	removed, err := s.store.Prune(ctx, maxAge, minFrequency, s.now())
	if err != nil {
		return removed, fmt.Errorf("prune suggestions: %w", err)
	}
	return removed, nil
}

// learnableTokens normalizes a query into the tokens worth learning.
func learnableTokens(query string) []string {
	var tokens []string
	for _, tok := range strings.Fields(normalize(query)) {
		if len(tok) < minTokenLen || stopWords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// normalize lower-cases and strips punctuation, keeping letters, digits, and
// spaces.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r > 127:
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
