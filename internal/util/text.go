// Package util provides shared text helpers.
package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// special letters that do not decompose into a base letter plus marks
var asciiReplacer = strings.NewReplacer(
	"ß", "ss",
	"Æ", "AE", "æ", "ae",
	"Ø", "O", "ø", "o",
	"Œ", "OE", "œ", "oe",
	"Ł", "L", "ł", "l",
	"Đ", "D", "đ", "d",
	"Þ", "Th", "þ", "th",
)

// FoldASCII strips diacritics so that "Österreich" compares as "Osterreich".
// Characters without an ASCII decomposition are kept as they are.
func FoldASCII(s string) string {
	if isASCII(s) {
		return s
	}
	// transform chains are stateful; build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return asciiReplacer.Replace(out)
}

// SanitizeFilename keeps letters, digits and whitespace. With
// underscoreWhitespace every whitespace rune becomes an underscore.
func SanitizeFilename(s string, underscoreWhitespace bool) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			if underscoreWhitespace {
				sb.WriteByte('_')
			} else {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
