package extraction

import (
	"regexp"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/cases"
)

// gq matches the optional gershayim/geresh inside Hebrew abbreviations such as
// סה"כ and מע"מ, in any of the forms receipts print it.
const gq = `["״׳'”]?`

// pattern is one entry of an ordered rule list. parse receives the first
// non-empty capture group (or the whole match) and reports whether the value
// is acceptable.
type pattern[T any] struct {
	name  string
	re    *regexp.Regexp
	tier  int
	parse func(string) (T, bool)
}

// hit is an accepted match together with where it came from.
type hit[T any] struct {
	value T
	tier  int
	pos   int
	text  string
}

// firstOf walks patterns in order and returns the first value parse accepts.
// When everyMatch is false only the leftmost match of each pattern is tried.
func firstOf[T any](text string, patterns []pattern[T], everyMatch bool) (T, bool) {
	for _, p := range patterns {
		var matches [][]string
		if everyMatch {
			matches = p.re.FindAllStringSubmatch(text, -1)
		} else if m := p.re.FindStringSubmatch(text); m != nil {
			matches = [][]string{m}
		}
		for _, m := range matches {
			if v, ok := p.parse(captured(m)); ok {
				return v, true
			}
		}
	}
	var zero T
	return zero, false
}

// collect returns every accepted match of every pattern.
func collect[T any](text string, patterns []pattern[T]) []hit[T] {
	var hits []hit[T]
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			m := submatches(text, loc)
			v, ok := p.parse(captured(m))
			if !ok {
				continue
			}
			hits = append(hits, hit[T]{value: v, tier: p.tier, pos: loc[0], text: m[0]})
		}
	}
	return hits
}

func captured(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return m[0]
}

func submatches(text string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

type keywordRow[L any] struct {
	label    L
	keywords []string
}

// keywordTable maps text to the label of the first row (in declaration order)
// that has any of its keywords in the text. All keywords are matched in one
// pass with an Aho-Corasick automaton; matching is substring based.
type keywordTable[L any] struct {
	rows     []keywordRow[L]
	owner    []int
	matcher  *ahocorasick.Matcher
	keywords map[string]bool
}

func newKeywordTable[L any](rows ...keywordRow[L]) *keywordTable[L] {
	t := &keywordTable[L]{rows: rows, keywords: make(map[string]bool)}
	var dictionary []string
	for i, row := range rows {
		for _, k := range row.keywords {
			dictionary = append(dictionary, fold(k))
			t.keywords[fold(k)] = true
			t.owner = append(t.owner, i)
		}
	}
	if len(dictionary) > 0 {
		t.matcher = ahocorasick.NewStringMatcher(dictionary)
	}
	return t
}

func (t *keywordTable[L]) lookup(text string) (L, bool) {
	var zero L
	if t.matcher == nil {
		return zero, false
	}
	best := -1
	for _, idx := range t.matcher.MatchThreadSafe([]byte(fold(text))) {
		if row := t.owner[idx]; best == -1 || row < best {
			best = row
		}
	}
	if best == -1 {
		return zero, false
	}
	return t.rows[best].label, true
}

// isKeyword reports whether word is itself one of the keywords, not merely
// contains one.
func (t *keywordTable[L]) isKeyword(word string) bool {
	return t.keywords[fold(word)]
}

// fold normalises punctuation and case so keywords and text compare equal.
// A Caser keeps state, so one is built per call.
func fold(s string) string {
	return cases.Fold().String(Normalize(s))
}
