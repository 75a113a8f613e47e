package search

import (
	"sort"
	"time"

	"github.com/alex-tgk/searchlight/internal/domain"
	"github.com/alex-tgk/searchlight/internal/domain/search/request"
	"github.com/alex-tgk/searchlight/internal/domain/search/result"
)

// recencyWindowDays is the linear decay window for the recency term.
const recencyWindowDays = 30

// Weights are the four fusion weights. Validated to sum to 1.0 at start-up.
type Weights struct {
	Keyword    float64
	Semantic   float64
	Recency    float64
	Popularity float64
}

// candidate accumulates per-source scores for one (entityType, entityId)
// identity during fusion.
type candidate struct {
	hit      result.Result
	resolved bool
	keyword  float64
	semantic float64
}

// fuseHybrid merges keyword hits and semantic matches into one candidate set
// keyed by document identity and rescoring each candidate with the weighted
// combination. Semantic-only candidates are resolved through resolve; matches
// whose document vanished are skipped.
func fuseHybrid(
	kwHits []result.Result,
	semMatches []domain.VectorMatch,
	resolve func(entityType, entityID string) (result.Result, bool),
	w Weights,
	now time.Time,
) []result.Result {
	merged := make(map[string]*candidate, len(kwHits)+len(semMatches))
	order := make([]string, 0, len(kwHits)+len(semMatches))

	for i := range kwHits {
		key := kwHits[i].Key()
		merged[key] = &candidate{hit: kwHits[i], resolved: true, keyword: kwHits[i].Score()}
		order = append(order, key)
	}

	for _, m := range semMatches {
		key := domain.KeyPrefixDocument + m.EntityType + ":" + m.EntityID
		if c, ok := merged[key]; ok {
			if m.Score > c.semantic {
				c.semantic = m.Score
			}
			continue
		}
		hit, ok := resolve(m.EntityType, m.EntityID)
		if !ok {
			continue
		}
		merged[key] = &candidate{hit: hit, resolved: true, semantic: m.Score}
		order = append(order, key)
	}

	fused := make([]result.Result, 0, len(order))
	for _, key := range order {
		c := merged[key]
		combined := w.Keyword*c.keyword +
			w.Semantic*c.semantic +
			w.Recency*recencyDecay(c.hit.UpdatedAt(), now) +
			w.Popularity*c.hit.Rank()
		fused = append(fused, c.hit.WithScore(combined))
	}
	return fused
}

// recencyDecay maps a timestamp to [0,1]: 1 for just-updated documents,
// linearly down to 0 at 30 days and beyond.
func recencyDecay(t, now time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	ageDays := now.Sub(t).Hours() / 24
	decay := 1 - ageDays/recencyWindowDays
	if decay < 0 {
		return 0
	}
	if decay > 1 {
		return 1
	}
	return decay
}

// sortResults orders hits by the requested order with deterministic
// tie-breaks: updatedAt descending, then (entityType, entityId) lexical.
func sortResults(hits []result.Result, order request.SortOrder) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := &hits[i], &hits[j]

		switch order {
		case request.SortDateDesc:
			if !a.UpdatedAt().Equal(b.UpdatedAt()) {
				return a.UpdatedAt().After(b.UpdatedAt())
			}
		case request.SortDateAsc:
			if !a.UpdatedAt().Equal(b.UpdatedAt()) {
				return a.UpdatedAt().Before(b.UpdatedAt())
			}
		case request.SortPopularity:
			if a.Rank() != b.Rank() {
				return a.Rank() > b.Rank()
			}
		default: // relevance
			if a.Score() != b.Score() {
				return a.Score() > b.Score()
			}
		}

		if !a.UpdatedAt().Equal(b.UpdatedAt()) {
			return a.UpdatedAt().After(b.UpdatedAt())
		}
		return a.Key() < b.Key()
	})
}
