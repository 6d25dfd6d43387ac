package extraction

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Fields are the expense fields read from one receipt. Every field is always
// set; what could not be found holds its default.
type Fields struct {
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Supplier       string          `json:"supplier"`
	Category       Category        `json:"category"`
	VATRate        decimal.Decimal `json:"vatRate"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	DocumentNumber string          `json:"documentNumber"`
}

// Policy holds the values used when a receipt gives no answer.
type Policy struct {
	// VATRateWhenUnstated applies when VAT is mentioned but no rate is legible.
	VATRateWhenUnstated decimal.Decimal
	// VATRateWithoutEvidence applies when the receipt never mentions VAT.
	VATRateWithoutEvidence decimal.Decimal
	DefaultCategory        Category
	DefaultPaymentMethod   PaymentMethod
}

// DefaultPolicy assumes the standard 17% rate whenever VAT is mentioned.
func DefaultPolicy() Policy {
	return Policy{
		VATRateWhenUnstated:    decimal.NewFromInt(17),
		VATRateWithoutEvidence: decimal.Zero,
		DefaultCategory:        CategoryOther,
		DefaultPaymentMethod:   PaymentCredit,
	}
}

// Validate checks that every default is a value the extractor could produce.
func (p Policy) Validate() error {
	var errs []error
	for name, rate := range map[string]decimal.Decimal{
		"vat rate when unstated":    p.VATRateWhenUnstated,
		"vat rate without evidence": p.VATRateWithoutEvidence,
	} {
		if !ValidVATRate(rate) {
			errs = append(errs, fmt.Errorf("%s %s outside [0,%s]", name, rate, maxVATRate))
		}
	}
	if !p.DefaultCategory.Valid() {
		errs = append(errs, fmt.Errorf("unknown default category %q", p.DefaultCategory))
	}
	if !p.DefaultPaymentMethod.Valid() {
		errs = append(errs, fmt.Errorf("unknown default payment method %q", p.DefaultPaymentMethod))
	}
	return errors.Join(errs...)
}

// Outcome is how a single field was resolved.
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeDefaulted Outcome = "defaulted"
	OutcomePanicked  Outcome = "panicked"
)

// Field names reported to the Observer.
const (
	FieldDate           = "date"
	FieldAmount         = "amount"
	FieldSupplier       = "supplier"
	FieldCategory       = "category"
	FieldVATRate        = "vatRate"
	FieldPaymentMethod  = "paymentMethod"
	FieldDocumentNumber = "documentNumber"
)

// Observer is told how each field of each extraction was resolved.
type Observer interface {
	ObserveField(field string, outcome Outcome)
	ObserveExtraction(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveField(string, Outcome)    {}
func (nopObserver) ObserveExtraction(time.Duration) {}

// step fills one field of f from normalised text and reports whether the
// text had an answer for it.
type step struct {
	field   string
	extract func(text string, p Policy, f *Fields) bool
}

var steps = []step{
	{FieldDate, func(text string, _ Policy, f *Fields) bool {
		d, ok := ExtractDate(text)
		if ok {
			f.Date = d
		}
		return ok
	}},
	{FieldAmount, func(text string, _ Policy, f *Fields) bool {
		a, ok := ExtractAmount(text)
		if ok {
			f.Amount = a
		}
		return ok
	}},
	{FieldSupplier, func(text string, _ Policy, f *Fields) bool {
		s, ok := ExtractSupplier(text)
		if ok {
			f.Supplier = s
		}
		return ok
	}},
	{FieldCategory, func(text string, _ Policy, f *Fields) bool {
		c, ok := ClassifyCategory(text)
		if ok {
			f.Category = c
		}
		return ok
	}},
	{FieldVATRate, func(text string, p Policy, f *Fields) bool {
		vat := DetectVAT(text)
		switch {
		case vat.Stated:
			f.VATRate = vat.Rate
		case vat.Charged:
			f.VATRate = p.VATRateWhenUnstated
		}
		return vat.Stated
	}},
	{FieldPaymentMethod, func(text string, _ Policy, f *Fields) bool {
		m, ok := ClassifyPaymentMethod(text)
		if ok {
			f.PaymentMethod = m
		}
		return ok
	}},
	{FieldDocumentNumber, func(text string, _ Policy, f *Fields) bool {
		n, ok := ExtractDocumentNumber(text)
		if ok {
			f.DocumentNumber = n
		}
		return ok
	}},
}

// Extractor turns receipt text into Fields.
type Extractor struct {
	policy   Policy
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
	steps    []step
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPolicy sets the defaults applied when a receipt gives no answer.
func WithPolicy(p Policy) Option {
	return func(e *Extractor) { e.policy = p }
}

// WithClock sets the source of the default date.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLogger sets the logger for panicking field extractors. Without one the
// default slog logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithObserver reports every field outcome and extraction duration to o.
func WithObserver(o Observer) Option {
	return func(e *Extractor) { e.observer = o }
}

// NewExtractor creates an Extractor with the default policy and the wall
// clock, changed by opts.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		policy:   DefaultPolicy(),
		now:      time.Now,
		observer: nopObserver{},
		steps:    steps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the defaults this extractor applies.
func (e *Extractor) Policy() Policy {
	return e.policy
}

// Extract reads every field from text. It never fails: a field that cannot be
// found, or whose extractor panics, keeps its default.
func (e *Extractor) Extract(text string) Fields {
	start := time.Now()
	defer func() { e.observer.ObserveExtraction(time.Since(start)) }()

	fields := Fields{
		Date:          e.now().UTC().Format(isoDate),
		Amount:        decimal.Zero,
		Category:      e.policy.DefaultCategory,
		VATRate:       e.policy.VATRateWithoutEvidence,
		PaymentMethod: e.policy.DefaultPaymentMethod,
	}

	text = Normalize(text)
	for _, s := range e.steps {
		e.run(s, text, &fields)
	}
	return fields
}

// run applies one step and reports the outcome. A panic is logged and leaves
// the field as it was.
func (e *Extractor) run(s step, text string, fields *Fields) {
	outcome := OutcomeDefaulted
	defer func() {
		if r := recover(); r != nil {
			e.log().Warn("Field extraction panicked", "field", s.field, "panic", r)
			outcome = OutcomePanicked
		}
		e.observer.ObserveField(s.field, outcome)
	}()

	// A step that panics leaves fields untouched.
	scratch := *fields
	if s.extract(text, e.policy, &scratch) {
		outcome = OutcomeMatched
	}
	*fields = scratch
}

func (e *Extractor) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

var defaultExtractor = NewExtractor()

// ExtractExpenseFields reads receipt text with the default policy.
func ExtractExpenseFields(text string) Fields {
	return defaultExtractor.Extract(text)
}
