package extraction

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctuation folds the quote and space variants that PDF text layers emit
// for Hebrew abbreviations onto their ASCII forms.
func punctuation(r rune) rune {
	switch r {
	case '״', '“', '”', '„', '‟':
		return '"'
	case '׳', '‘', '’', '‚', '`':
		return '\''
	case '\u00a0', '\u2007', '\u2009', '\u202f':
		return ' '
	}
	return r
}

// Normalize applies NFKC, strips bidi control marks and maps Hebrew
// punctuation variants to ASCII. Text that cannot be transformed is returned
// unchanged.
func Normalize(text string) string {
	if text == "" {
		return text
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	t := transform.Chain(
		norm.NFKC,
		runes.Remove(runes.In(unicode.Bidi_Control)),
		runes.Map(punctuation),
	)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}
