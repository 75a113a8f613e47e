package domain

import "testing"

func TestParseMetadata_RoundTrip(t *testing.T) {
	m, err := ParseMetadata([]byte(`{"category":"tech","published":true,"views":42}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := m.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := ParseMetadata(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again["category"] != "tech" {
		t.Errorf("round trip lost category, got %v", again)
	}
}

func TestParseMetadata_Empty(t *testing.T) {
	m, err := ParseMetadata(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Errorf("empty input must yield nil, got %v", m)
	}

	data, err := Metadata(nil).Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != nil {
		t.Errorf("nil metadata must encode to nil, got %q", data)
	}
}

func TestParseMetadata_Malformed(t *testing.T) {
	if _, err := ParseMetadata([]byte(`{"broken`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestMetadataMatchesString(t *testing.T) {
	m, err := ParseMetadata([]byte(`{"category":"tech","published":true,"views":42,"nested":{"a":1}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		key  string
		want string
		ok   bool
	}{
		{"string match", "category", "tech", true},
		{"string mismatch", "category", "sports", false},
		{"missing key", "author", "anyone", false},
		{"bool renders as string", "published", "true", true},
		{"number renders canonically", "views", "42", true},
		{"number mismatch", "views", "42.0", false},
		{"nested never matches", "nested", "{\"a\":1}", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.MatchesString(tt.key, tt.want); got != tt.ok {
				t.Errorf("MatchesString(%q, %q) = %v, want %v", tt.key, tt.want, got, tt.ok)
			}
		})
	}
}
