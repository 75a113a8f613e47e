// Package suggestion defines the learned autocomplete term.
package suggestion

import "time"

// Decay model constants.
const (
	// FrequencySaturation is the count at which the frequency component maxes out.
	FrequencySaturation = 100
	// RecencyWindowDays is the linear decay window for the recency component.
	RecencyWindowDays = 30
)

// Term is a learned suggestion term (immutable value object).
type Term struct {
	text       string
	entityType string
	frequency  int64
	lastUsed   time.Time
}

// New creates a suggestion term.
func New(text, entityType string, frequency int64, lastUsed time.Time) Term {
	return Term{text: text, entityType: entityType, frequency: frequency, lastUsed: lastUsed}
}

// Text returns the normalized term text.
func (t *Term) Text() string { return t.text }

// EntityType returns the entity type the term was learned from (may be empty).
func (t *Term) EntityType() string { return t.entityType }

// Frequency returns how many times the term has been observed.
func (t *Term) Frequency() int64 { return t.frequency }

// LastUsed returns the most recent observation time.
func (t *Term) LastUsed() time.Time { return t.lastUsed }

// Score computes the decayed relevance of the term at the given instant:
// 0.7 * min(frequency/100, 1) + 0.3 * max(0, 1 - ageDays/30).
func (t *Term) Score(now time.Time) float64 {
	freq := float64(t.frequency) / FrequencySaturation
	if freq > 1 {
		freq = 1
	}

	ageDays := now.Sub(t.lastUsed).Hours() / 24
	recency := 1 - ageDays/RecencyWindowDays
	if recency < 0 {
		recency = 0
	}

	return 0.7*freq + 0.3*recency
}
