package search

import (
	"strings"
	"unicode"
)

// fillerWords never count toward a verbatim match.
var fillerWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be but by do for from
		have in is it not of on that the this to was with you`) {
		fillerWords[w] = struct{}{}
	}
}

// significantWords lowercases text, splits it on anything that is not a
// letter or digit and drops filler words.
func significantWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if _, skip := fillerWords[f]; !skip {
			words = append(words, f)
		}
	}
	return words
}

// isVerbatim reports whether every significant word of query occurs in text.
// Queries with no significant words never match.
func isVerbatim(text, query string) bool {
	want := significantWords(query)
	if len(want) == 0 {
		return false
	}
	have := make(map[string]struct{})
	for _, w := range significantWords(text) {
		have[w] = struct{}{}
	}
	for _, w := range want {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}
