package extraction

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// maxVATRate is the highest VAT rate ever charged locally. Percentages above
// it next to a VAT label are OCR noise.
var maxVATRate = decimal.NewFromInt(18)

// VAT describes the VAT evidence found in a receipt.
type VAT struct {
	Charged bool
	Stated  bool
	Rate    decimal.Decimal
}

var vatIndicators = newKeywordTable(
	keywordRow[bool]{true, []string{`מע"מ`, "מעמ", `כולל מע"מ`, "vat", "tax", "including vat", "incl. vat"}},
)

const vatLabel = `(?:מע` + gq + `מ|vat|tax)`

var vatRatePatterns = []pattern[decimal.Decimal]{
	{name: "label-rate", re: regexp.MustCompile(`(?i)` + vatLabel + `\s*[:\-]?\s*\(?\s*(\d{1,3}(?:\.\d{1,2})?)\s*%`), parse: parseVATRate},
	{name: "rate-label", re: regexp.MustCompile(`(?i)(\d{1,3}(?:\.\d{1,2})?)\s*%\s*\)?\s*` + vatLabel), parse: parseVATRate},
}

// ValidVATRate reports whether rate is a percentage a receipt could carry.
func ValidVATRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && !rate.GreaterThan(maxVATRate)
}

func parseVATRate(s string) (decimal.Decimal, bool) {
	rate, err := decimal.NewFromString(s)
	if err != nil || !ValidVATRate(rate) {
		return decimal.Zero, false
	}
	return rate, true
}

// DetectVAT reports whether the text shows VAT was charged and, if a
// plausible percentage is printed next to a VAT label, at what rate.
func DetectVAT(text string) VAT {
	if _, ok := vatIndicators.lookup(text); !ok {
		return VAT{}
	}
	rate, ok := firstOf(text, vatRatePatterns, true)
	if !ok {
		return VAT{Charged: true}
	}
	return VAT{Charged: true, Stated: true, Rate: rate}
}
