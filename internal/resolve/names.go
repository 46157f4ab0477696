package resolve

import (
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldName strips diacritics, punctuation and spaces and case-folds the rest.
// Transformers keep state, so each call builds its own chain.
func foldName(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSpace(r)
		})),
		norm.NFC,
		cases.Fold(),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// SameName reports whether two names are equal ignoring case, diacritics,
// punctuation and spaces.
func SameName(a, b string) bool {
	return foldName(a) == foldName(b)
}
