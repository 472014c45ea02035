package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "role:admin, policy:not-root", 15, "role:admin, ..."},
		{"whitespace collapsed", "  a\n\tb   c ", 20, "a b c"},
		{"unicode truncation safe", "héllo wörld", 8, "héllo..."},
		{"empty string", "", 10, ""},
		{"small maxLen clamped", "abcdefgh", 1, "a..."},
		{"negative maxLen clamped", "abcdefgh", -3, "a..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}
