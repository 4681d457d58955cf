package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Luna", "Luna"},
		{"emoji and punctuation", "Tomás 🎭!!", "Tomás"},
		{"collapses whitespace", "  Deep   Thought  ", "Deep Thought"},
		{"digits kept", "Unit 42", "Unit 42"},
		{"non latin letters kept", "Ведьма", "Ведьма"},
		{"only symbols", "🎭✨!!", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc", Shorten("abc", 5))
	assert.Equal(t, "ab...", Shorten("abcdefgh", 5))
	assert.Equal(t, "abc", Shorten("abcdefgh", 3))
	assert.Equal(t, "abcdefgh", Shorten("abcdefgh", 0))
	assert.Equal(t, "héllo...", Shorten("héllo wörld", 8))
}
