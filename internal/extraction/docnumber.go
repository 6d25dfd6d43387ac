package extraction

import (
	"regexp"
	"strings"
	"unicode"
)

const docNumber = `\s*[:\-]?\s*(\d[\d\-/]*)`

// Label patterns from most to least specific, then a bare digit run.
var documentNumberPatterns = []pattern[string]{
	{
		name:  "reference",
		re:    regexp.MustCompile(`(?i)(?:אסמכתא|reference|ref\.?)(?:\s*(?:no\.?|number|#|מספר|מס'))?` + docNumber),
		parse: parseDocumentNumber,
	},
	{
		name:  "invoice",
		re:    regexp.MustCompile(`(?i)(?:חשבונית(?:\s+מס)?(?:\s*[\-/]?\s*קבלה)?(?:\s*(?:מספר|מס'|#))?|invoice\s*(?:no\.?|number|#))` + docNumber),
		parse: parseDocumentNumber,
	},
	{
		name:  "receipt",
		re:    regexp.MustCompile(`(?i)(?:קבלה(?:\s*(?:מספר|מס'|#))?|receipt\s*(?:no\.?|number|#))` + docNumber),
		parse: parseDocumentNumber,
	},
	{
		name:  "number",
		re:    regexp.MustCompile(`(?i)(?:מספר|מס'|no\.|number|#)` + docNumber),
		parse: parseDocumentNumber,
	},
	{
		name:  "bare",
		re:    regexp.MustCompile(`(?:^|\D)(\d{6,12})(?:\D|$)`),
		parse: parseDocumentNumber,
	},
}

func parseDocumentNumber(s string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if n := len(digits); n < 4 || n > 12 {
		return "", false
	}
	return digits, true
}

// ExtractDocumentNumber returns the digits of the first plausible reference,
// invoice or receipt number.
func ExtractDocumentNumber(text string) (string, bool) {
	return firstOf(text, documentNumberPatterns, true)
}
