// Package analytics defines the query log and click signal records.
package analytics

import "time"

// QueryLogEntry records one executed search. Append-only; never read on the
// query path.
type QueryLogEntry struct {
	ID          string
	Query       string
	Mode        string
	EntityTypes []string
	Filters     map[string]string
	ResultCount int
	HadResults  bool
	DurationMS  int64
	UserID      string
	At          time.Time
}

// ResultClick records a user clicking a search result, linked back to the
// query log entry that produced it.
type ResultClick struct {
	ID         string
	QueryLogID string
	EntityType string
	EntityID   string
	Position   int
	At         time.Time
}
