package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to maxLen runes, marking the cut with an ellipsis.
func Truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// Preview flattens chunk text onto one line, collapsing runs of whitespace,
// and truncates it to maxLen runes.
func Preview(text string, maxLen int) string {
	return Truncate(strings.Join(strings.Fields(text), " "), maxLen)
}
