// Package util contains small string helpers shared across packages. It
// lives in internal to avoid committing to public API stability prematurely.
package util

import (
	"strings"
	"unicode"
)

// NormalizeName strips every rune that is not a letter (any script), digit
// or whitespace, collapses whitespace runs to a single space and trims the
// result. Accented and non-Latin letters are preserved.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Shorten truncates s to at most max runes, appending an ellipsis when the
// text was cut. Chat platforms cap message length; callers pick the cap.
func Shorten(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
