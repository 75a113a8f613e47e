package domain

import (
	"encoding/json"
	"fmt"
)

// Metadata holds arbitrary per-document key-value pairs. Values are strings,
// numbers, booleans, or nested objects of the same shape; it round-trips
// through JSON for hash storage.
type Metadata map[string]any

// ParseMetadata decodes a JSON object into Metadata. Empty input yields nil.
func ParseMetadata(data []byte) (Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return m, nil
}

// Encode serializes Metadata to JSON. Nil metadata yields an empty slice.
func (m Metadata) Encode() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

// MatchesString reports whether the top-level field key exists and its value,
// rendered as a string, equals want. Numbers compare through their canonical
// JSON rendering; nested objects never match.
func (m Metadata) MatchesString(key, want string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case string:
		return t == want
	case bool:
		return fmt.Sprintf("%t", t) == want
	case float64:
		// json.Unmarshal decodes all numbers as float64
		b, err := json.Marshal(t)
		if err != nil {
			return false
		}
		return string(b) == want
	default:
		return false
	}
}
