package rules

import "strings"

// Invisible Unicode marks (bidi isolates, zero-width chars, BOM, embeddings)
// that messaging apps inject around sender names and bodies. Stripped before
// any matching so "⁨Bob⁩" compares equal to "Bob".
func isInvisibleMark(r rune) bool {
	switch r {
	case '\u2068', '\u2069', '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	}
	return r >= '\u202a' && r <= '\u202e'
}

// Normalize strips invisible formatting marks from text.
func Normalize(text string) string {
	if !strings.ContainsFunc(text, isInvisibleMark) {
		return text
	}
	return strings.Map(func(r rune) rune {
		if isInvisibleMark(r) {
			return -1
		}
		return r
	}, text)
}
