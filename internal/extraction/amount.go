package extraction

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	tierTotalWithVAT = iota + 1
	tierTotalPayable
	tierTotal
	tierCurrency
)

const (
	number   = `(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`
	currency = `(?:₪|ש` + gq + `ח|\bnis\b|\bils\b|\$|€)`
	labelEnd = `\s*[:\-]?\s*` + currency + `?\s*` + number
)

var amountPatterns = []pattern[decimal.Decimal]{
	{
		name:  "total-with-vat",
		tier:  tierTotalWithVAT,
		re:    regexp.MustCompile(`(?i)(?:סה` + gq + `כ\s*(?:לתשלום\s*)?כולל\s*מע` + gq + `מ|total\s*incl(?:uding|\.)?\s*vat|grand\s+total)` + labelEnd),
		parse: parseAmount,
	},
	{
		name:  "total-payable",
		tier:  tierTotalPayable,
		re:    regexp.MustCompile(`(?i)(?:סה` + gq + `כ\s*לתשלום|לתשלום|total\s+payable|total\s+to\s+pay|amount\s+due|balance\s+due|total\s+due)` + labelEnd),
		parse: parseAmount,
	},
	{
		name:  "total",
		tier:  tierTotal,
		re:    regexp.MustCompile(`(?i)(?:סה` + gq + `כ(?:\s*לפני\s*מע` + gq + `מ)?|סך\s*הכל|סכום|sub\s*total|total(?:\s*(?:before|excl(?:uding|\.)?)\s*vat)?|amount|sum)` + labelEnd),
		parse: parseAmount,
	},
	{
		name:  "number-then-currency",
		tier:  tierCurrency,
		re:    regexp.MustCompile(`(?i)(?:^|[^\d.,])` + number + `\s*(?:₪|ש` + gq + `ח|\bnis\b|\bils\b)`),
		parse: parseAmount,
	},
	{
		name:  "currency-then-number",
		tier:  tierCurrency,
		re:    regexp.MustCompile(`(?i)(?:₪|\$|€|\bnis\b|\bils\b)\s*` + number),
		parse: parseAmount,
	},
}

func parseAmount(s string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}

// amountCandidates returns one candidate per distinct value, keeping the best
// tier it was seen with, ordered best first.
func amountCandidates(text string) []hit[decimal.Decimal] {
	best := make(map[string]hit[decimal.Decimal])
	for _, h := range collect(text, amountPatterns) {
		key := h.value.StringFixed(2)
		if prev, ok := best[key]; ok && (prev.tier < h.tier || prev.tier == h.tier && prev.pos <= h.pos) {
			continue
		}
		best[key] = h
	}

	out := make([]hit[decimal.Decimal], 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b hit[decimal.Decimal]) int {
		if c := cmp.Compare(a.tier, b.tier); c != 0 {
			return c
		}
		if c := b.value.Cmp(a.value); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})
	return out
}

// ExtractAmount returns the most likely total of the receipt. A more specific
// label beats a larger number; among equally specific labels the larger
// number wins.
func ExtractAmount(text string) (decimal.Decimal, bool) {
	candidates := amountCandidates(text)
	if len(candidates) == 0 {
		return decimal.Zero, false
	}
	return candidates[0].value, true
}
