package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DisplaySnippet returns a single-line, cleaned excerpt of s for logs.
// Figures such as "T4 2023" are kept as written.
func DisplaySnippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 120
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, SanitizeText(s))
	return Preview(strings.Join(strings.Fields(s), " "), maxRunes)
}

// Preview keeps the first maxRunes runes of s verbatim and marks the cut with "...".
func Preview(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

// RuneCount mirrors character counts shown to users.
func RuneCount(s string) int {
	return utf8.RuneCountInString(s)
}
