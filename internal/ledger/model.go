package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/bookkeeping/internal/extraction"
)

// Party is a customer or a supplier
type Party struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contactPerson,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Customer is someone the business receives income from
type Customer Party

// Supplier is someone the business pays expenses to
type Supplier Party

// ExpenseSource records how an expense entered the ledger
type ExpenseSource string

const (
	SourceManual ExpenseSource = "manual"
	SourceScan   ExpenseSource = "scan"
	SourceImport ExpenseSource = "import"
)

// Expense is money paid to a supplier. VAT is the rate in percent.
type Expense struct {
	ID              string                   `json:"id"`
	ReferenceNumber string                   `json:"referenceNumber"`
	Date            time.Time                `json:"date"`
	SupplierID      string                   `json:"supplierId"`
	Category        extraction.Category      `json:"category"`
	Amount          decimal.Decimal          `json:"amount"`
	VAT             decimal.Decimal          `json:"vat"`
	PaymentMethod   extraction.PaymentMethod `json:"paymentMethod"`
	Attachment      string                   `json:"attachment,omitempty"`
	Source          ExpenseSource            `json:"source"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// CreditCardDetails describe a card payment
type CreditCardDetails struct {
	Last4Digits  string `json:"last4Digits,omitempty"`
	Installments int    `json:"installments,omitempty"`
}

// CheckDetails describe a check payment
type CheckDetails struct {
	CheckNumber   string     `json:"checkNumber,omitempty"`
	AccountNumber string     `json:"accountNumber,omitempty"`
	BankNumber    string     `json:"bankNumber,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
}

// TransferDetails describe a bank transfer
type TransferDetails struct {
	ReferenceNumber string `json:"referenceNumber,omitempty"`
	AccountNumber   string `json:"accountNumber,omitempty"`
	BankNumber      string `json:"bankNumber,omitempty"`
}

// Payment is how an income was received. Only the details matching Method are
// expected to be set.
type Payment struct {
	Method     extraction.PaymentMethod `json:"method"`
	Amount     decimal.Decimal          `json:"amount"`
	CreditCard *CreditCardDetails       `json:"creditCard,omitempty"`
	Check      *CheckDetails            `json:"check,omitempty"`
	Transfer   *TransferDetails         `json:"transfer,omitempty"`
}

// Income is money received from a customer, identified by its receipt number
type Income struct {
	ID                 string          `json:"id"`
	ReceiptNumber      string          `json:"receiptNumber"`
	Date               time.Time       `json:"date"`
	CustomerID         string          `json:"customerId"`
	Amount             decimal.Decimal `json:"amount"`
	VAT                decimal.Decimal `json:"vat"`
	Payment            Payment         `json:"payment"`
	Details            string          `json:"details,omitempty"`
	ReceiptPrintedDate *time.Time      `json:"receiptPrintedDate,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// ScanResult is what a receipt upload pre-fills the expense form with
type ScanResult struct {
	Fields extraction.Fields `json:"fields"`
	Text   string            `json:"text"`
}

// ScanOutcome is the result of one file of a batch upload
type ScanOutcome struct {
	Filename string   `json:"filename"`
	Expense  *Expense `json:"expense,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Upload is one uploaded file
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
