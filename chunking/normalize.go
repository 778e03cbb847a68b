package chunking

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// permittedPunctuation lists the punctuation that survives normalization.
const permittedPunctuation = `.,;:!?-()[]{}"'`

// Normalize cleans raw extracted text before chunking.
//
// Characters other than word characters (letters, marks, digits, underscore),
// whitespace and permittedPunctuation become spaces. Whitespace runs then
// collapse: a run containing a newline becomes a single "\n", any other run a
// single space. Leading and trailing whitespace is removed.
//
// Normalize is idempotent. An empty result means there is nothing to chunk.
func Normalize(text string) string {
	text = norm.NFC.String(text)

	var b strings.Builder
	b.Grow(len(text))

	pending := false
	newline := false
	for _, r := range text {
		if !permitted(r) {
			r = ' '
		}
		if unicode.IsSpace(r) {
			pending = true
			if r == '\n' {
				newline = true
			}
			continue
		}
		if pending && b.Len() > 0 {
			if newline {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		pending, newline = false, false
		b.WriteRune(r)
	}

	return b.String()
}

func permitted(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsNumber(r), r == '_':
		return true
	case unicode.IsSpace(r):
		return true
	default:
		return strings.ContainsRune(permittedPunctuation, r)
	}
}
