// Package matching resolves free-text item names and quantities against the menu catalog.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes text for comparison: lower-case ASCII letters, digits and single
// spaces. Ampersands become "and", quote marks are dropped, other punctuation splits words.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	folded := strings.ToLower(stripDiacritics(text))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '&':
			b.WriteString(" and ")
		case isQuote(r):
			// dropped so "caesar's" stays one word
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize splits normalized text into tokens.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}

func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

func isQuote(r rune) bool {
	switch r {
	case '\'', '"', '`', '‘', '’', '“', '”', '′', '´':
		return true
	}
	return false
}
