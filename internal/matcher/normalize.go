package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes text and drops combining marks, so that
// accented and unaccented spellings compare equal.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes free-form text for comparison: lower-case,
// diacritics stripped, punctuation removed, whitespace collapsed to
// single spaces and trimmed. The function is pure and idempotent, so
// Normalize(Normalize(s)) == Normalize(s) for any input.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// mutuallyContains reports whether either normalized string contains the
// other. Callers are expected to pass already-normalized values.
func mutuallyContains(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
