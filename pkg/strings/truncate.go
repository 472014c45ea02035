// Package strings holds text helpers for terminal output.
package strings

import (
	"strings"
)

// DefaultMaxLen is the column width used by the route listing.
const DefaultMaxLen = 60

// minLen leaves room for one character and the ellipsis.
const minLen = 4

// Truncate collapses all whitespace in s to single spaces and cuts the
// result to maxLen runes, ending in "..." when shortened.
func Truncate(s string, maxLen int) string {
	maxLen = max(maxLen, minLen)
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
