package resolvecity

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// combiningMarks matches decomposed diacritics left in a stored name.
const combiningMarks = "[\u0300-\u036f]*"

var (
	foldOnce    sync.Once
	foldClasses map[rune][]rune
)

// buildFoldClasses maps each normalized letter to every letter of the Basic
// Multilingual Plane that Normalize turns into it.
func buildFoldClasses() {
	foldClasses = make(map[rune][]rune)
	for r := rune(0); r <= 0xFFFF; r++ {
		if !unicode.IsLetter(r) {
			continue
		}
		base := Normalize(string(r))
		if utf8.RuneCountInString(base) != 1 {
			continue
		}
		b, _ := utf8.DecodeRuneInString(base)
		if b != r {
			foldClasses[b] = append(foldClasses[b], r)
		}
	}
}

// namePattern turns a normalized name prefix into an anchored regular
// expression matching stored names whose Normalize form starts with it. The
// syntax is shared by Go's regexp and PostgreSQL's ~ operator.
func namePattern(normalizedPrefix string) string {
	foldOnce.Do(buildFoldClasses)

	var b strings.Builder
	b.WriteString("^")
	for _, r := range normalizedPrefix {
		switch {
		case unicode.IsSpace(r):
			b.WriteString(`\s+`)
		case unicode.IsLetter(r):
			b.WriteByte('[')
			b.WriteRune(r)
			for _, v := range foldClasses[r] {
				b.WriteRune(v)
			}
			b.WriteByte(']')
			b.WriteString(combiningMarks)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}
