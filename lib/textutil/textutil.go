package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize lowercases s and collapses every whitespace run into a single
// space.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// MatchAny reports whether any of the terms occurs in one of the texts,
// ignoring case and whitespace differences. No terms matches everything.
func MatchAny(texts []string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, text := range texts {
		text = Normalize(text)
		for _, term := range terms {
			if term = Normalize(term); term != "" && strings.Contains(text, term) {
				return true
			}
		}
	}
	return false
}
