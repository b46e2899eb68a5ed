package core

import "strings"

// Stop words filtered out during tokenization and keyword extraction
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// IsStopWord reports whether the (already lowercased) word is a stop word.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Tokenize splits text into lowercase alphanumeric tokens, dropping stop
// words. Tokens are runs of letters, digits, underscores, and hyphens, so
// they are safe to embed in composite index keys.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		case r == '_' || r == '-':
			return false
		}
		return true
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// NormalizeTagName lowercases, trims, and collapses internal whitespace to
// single underscores. Normalization is idempotent: applying it twice yields
// the same result.
func NormalizeTagName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "_")
}
