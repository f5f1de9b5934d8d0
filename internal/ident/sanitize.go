// Package ident turns caller identities into tokens that are safe to embed
// in file and table names.
package ident

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Fallback is returned when nothing usable survives sanitization.
const Fallback = "Temp"

// Separator replaces every illegal character.
const Separator = '_'

// illegal is the fixed set of characters that cannot appear in file or
// table names on the platforms the outputs are written to.
const illegal = `\%$:*/?<>|~.` + "£€¥¢"

// Sanitize returns a scoping token derived from identity.
//
// The input is NFC normalized before inspection so that composed and
// decomposed spellings of the same name produce the same token. Illegal
// characters, currency symbols and whitespace are replaced by Separator;
// runs of separators collapse to one and are trimmed from both ends.
// The function is total and idempotent on clean strings.
func Sanitize(identity string) string {
	identity = norm.NFC.String(identity)

	var b strings.Builder
	b.Grow(len(identity))
	lastSep := true // suppress leading separators
	for _, r := range identity {
		if isIllegal(r) || r == Separator {
			if !lastSep {
				b.WriteRune(Separator)
				lastSep = true
			}
			continue
		}
		b.WriteRune(r)
		lastSep = false
	}

	out := strings.TrimRight(b.String(), string(Separator))
	if out == "" {
		return Fallback
	}
	return out
}

func isIllegal(r rune) bool {
	if strings.ContainsRune(illegal, r) {
		return true
	}
	if unicode.Is(unicode.Sc, r) {
		return true
	}
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
