// Package keyword implements the full-text search backend over either
// RediSearch or an embedded Bleve index. Both drivers share the same query
// shape: a fuzzy multi-field match OR-ed with substring matching on title
// and content.
package keyword

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field weights of the fuzzy match.
const (
	weightTitle   = 3.0
	weightContent = 2.0
	weightAuthor  = 2.0
	weightTags    = 2.0
)

// minInfixRunes is the shortest term matched as a substring.
const minInfixRunes = 2

// Terms splits a query into lowercase letter/digit tokens, in order, without duplicates.
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Fuzziness returns the AUTO edit distance for a term:
// 0 below 3 runes, 1 up to 5 runes, 2 beyond.
func Fuzziness(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n < 3:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func infixTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if utf8.RuneCountInString(t) >= minInfixRunes {
			out = append(out, t)
		}
	}
	return out
}
