// Package geocode resolves formation addresses to coordinates through a
// pluggable provider, memoizing every outcome in the geocache table.
package geocode

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes an address into its cache key: lowercase,
// diacritics stripped, punctuation collapsed to single spaces, trimmed.
// Idempotent; never shown to users. Provider-independent so swapping
// providers keeps the cache valid.
func Normalize(address string) string {
	s := strings.ToLower(address)

	// NFD then drop combining marks: "Défense" -> "defense"
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripper, s); err == nil {
		s = out
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// collapseWhitespace tidies the raw address passed to providers without
// losing case, accents or punctuation.
func collapseWhitespace(address string) string {
	return strings.Join(strings.Fields(address), " ")
}
