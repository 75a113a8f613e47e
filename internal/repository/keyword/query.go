package keyword

import (
	"strings"

	"github.com/alex-tgk/searchlight/internal/db"
)

// BuildQuery constructs the FT.SEARCH query string for a text search.
// The text is lower-cased, punctuation is stripped, and whitespace-tokenized;
// empty tokens are dropped. Fuzzy mode emits prefix terms (tok*), exact mode
// emits full tokens; either way tokens are AND-combined. An empty token list
// yields an empty string, which the caller must treat as "matches nothing".
func BuildQuery(text string, fuzzy bool, entityTypes []string) string {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return ""
	}

	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		escaped := db.EscapeQueryTerm(tok)
		if fuzzy {
			terms[i] = escaped + "*"
		} else {
			terms[i] = escaped
		}
	}

	textPart := "(" + strings.Join(terms, " ") + ")"

	if filter := entityTypeFilter(entityTypes); filter != "" {
		return filter + " " + textPart
	}
	return textPart
}

// entityTypeFilter builds the TAG pre-filter for an entity type restriction.
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

// Tokenize normalizes query text into search tokens: lower-case, punctuation
// replaced by spaces, split on whitespace, empties dropped.
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r > 127: // keep non-ASCII letters as-is
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}
