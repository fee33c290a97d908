package utils

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Casers are stateful and must not be shared between goroutines, so each
// call builds its own.
func lower(s string) string { return cases.Lower(language.Und).String(s) }
func upper(s string) string { return cases.Upper(language.Und).String(s) }

// NormalizeTerm lowercases and trims a free-text term so that category
// names and search analytics keys compare equal regardless of casing.
func NormalizeTerm(s string) string {
	return lower(strings.TrimSpace(s))
}

// TitleCase uppercases the first letter of every whitespace-separated word
// and lowercases the rest. Runs of whitespace collapse to a single space.
//
//	TitleCase("persian RESTAURANTS") == "Persian Restaurants"
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		_, size := utf8.DecodeRuneInString(word)
		words[i] = upper(word[:size]) + lower(word[size:])
	}
	return strings.Join(words, " ")
}

// ContainsFold reports whether substr is within s, ignoring case.
// An empty substr never matches.
func ContainsFold(s, substr string) bool {
	if substr == "" || s == "" {
		return false
	}
	return strings.Contains(lower(s), lower(substr))
}
