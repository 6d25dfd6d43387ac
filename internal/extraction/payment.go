package extraction

import (
	"fmt"
	"strings"
)

// PaymentMethod is how an expense was paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCredit   PaymentMethod = "credit"
	PaymentCheck    PaymentMethod = "check"
	PaymentTransfer PaymentMethod = "transfer"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentCheck, PaymentTransfer:
		return true
	}
	return false
}

var paymentLabels = map[PaymentMethod]string{
	PaymentCash:     "מזומן",
	PaymentCredit:   "אשראי",
	PaymentCheck:    "צ'ק",
	PaymentTransfer: "העברה בנקאית",
}

// Label returns the Hebrew display label.
func (m PaymentMethod) Label() string {
	return paymentLabels[m]
}

// ParsePaymentMethod accepts a method name (case-insensitive) or its Hebrew
// label.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.TrimSpace(s)
	for m, label := range paymentLabels {
		if strings.EqualFold(s, string(m)) || s == label {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// Rows are tested in order; credit is listed last so an explicit card
// mention counts as a match instead of the fallback.
var paymentKeywords = newKeywordTable(
	keywordRow[PaymentMethod]{PaymentCash, []string{"מזומן", "cash"}},
	keywordRow[PaymentMethod]{PaymentCheck, []string{`צ'ק`, `צ"ק`, "שיק", "המחאה", "cheque", "check"}},
	keywordRow[PaymentMethod]{PaymentTransfer, []string{"העברה בנקאית", "העברה", "transfer", "wire"}},
	keywordRow[PaymentMethod]{PaymentCredit, []string{"אשראי", "כרטיס", "ויזה", "ישראכרט", "credit", "visa", "mastercard"}},
)

// ClassifyPaymentMethod returns cash, check or transfer when the text
// mentions one of them, and credit otherwise.
func ClassifyPaymentMethod(text string) (PaymentMethod, bool) {
	if m, ok := paymentKeywords.lookup(text); ok {
		return m, true
	}
	return PaymentCredit, false
}
