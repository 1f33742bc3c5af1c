package candidate

import (
	"strings"
	"unicode"
)

// inputMarker prefixes paragraphs that echo the player's own input.
const inputMarker = ">>"

// Normalize returns the comparison form of a paragraph text: every
// whitespace run (non-breaking spaces included) becomes one space, one
// input marker followed by whitespace is removed when the text starts with
// it, and the ends are trimmed. The marker is only recognised at the very
// start, before trimming.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	out, _ := strings.CutPrefix(b.String(), inputMarker+" ")
	return strings.TrimSpace(out)
}

// TextEqual reports whether a and b are equal after normalisation.
func TextEqual(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
