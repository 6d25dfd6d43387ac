package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	nameWord    = `[\p{L}\d&'".\-]+`
	legalSuffix = `(?:בע"מ|בעמ|ושות'?|שותפים|ltd\.?|limited|inc\.?|llc|corp\.?|&[ \t]*sons|and[ \t]+sons|partners)`
)

var supplierPatterns = []pattern[string]{
	{
		name:  "legal-suffix",
		re:    regexp.MustCompile(`(?i)((?:` + nameWord + `[ \t]+){1,3}` + legalSuffix + `)(?:[^\p{L}]|$)`),
		parse: parseSupplier,
	},
	{
		name:  "label",
		re:    regexp.MustCompile(`(?i)(?:שם[ \t]+העסק|שם[ \t]+הספק|ספק|עסק|supplier|vendor|business[ \t]+name|company|merchant|name)[ \t]*:[ \t]*([^\n]+)`),
		parse: parseSupplier,
	},
	{
		name:  "first-name-line",
		re:    regexp.MustCompile(`(?m)^[ \t]*(\p{L}[\p{L} \t&'".\-]*)$`),
		parse: parseNameLine,
	},
}

// Words that head receipts but never name a business.
var documentWords = map[string]bool{
	"חשבונית": true, "קבלה": true, "מס": true, "מס'": true, "מספר": true,
	"מקור": true, "העתק": true, "עסקה": true,
	"invoice": true, "receipt": true, "tax": true, "original": true, "copy": true,
	`מע"מ`: true, "מעמ": true, `סה"כ`: true, "לתשלום": true, "סכום": true, "תאריך": true,
	"vat": true, "total": true, "amount": true, "date": true,
}

func parseSupplier(s string) (string, bool) {
	words := strings.Fields(s)
	for len(words) > 0 && documentWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	name := strings.Trim(strings.Join(words, " "), ` :-.,`)
	if n := utf8.RuneCountInString(name); n <= 2 || n >= 50 {
		return "", false
	}
	return name, true
}

// parseNameLine is parseSupplier for bare lines, which must hold at least one
// word that is not a category, payment or VAT keyword.
func parseNameLine(s string) (string, bool) {
	name, ok := parseSupplier(s)
	if !ok {
		return "", false
	}
	for _, w := range strings.Fields(name) {
		if !isKeyword(w) {
			return name, true
		}
	}
	return "", false
}

func isKeyword(word string) bool {
	return categoryKeywords.isKeyword(word) ||
		paymentKeywords.isKeyword(word) ||
		vatIndicators.isKeyword(word)
}

// ExtractSupplier returns a business name found next to a legal suffix, after
// a name label, or on the first line that reads like a name.
func ExtractSupplier(text string) (string, bool) {
	return firstOf(text, supplierPatterns, true)
}
