package ledger

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zombor/bookkeeping/internal/extraction"
)

// validateIncome checks an income before it is stored. A payment without an
// amount is taken to cover the whole income.
func (s *Service) validateIncome(in *Income) error {
	in.ReceiptNumber = strings.TrimSpace(in.ReceiptNumber)
	if in.Payment.Method == "" {
		in.Payment.Method = extraction.PaymentCash
	}
	if in.Payment.Amount.IsZero() {
		in.Payment.Amount = in.Amount
	}

	var errs []error
	if in.ReceiptNumber == "" {
		errs = append(errs, errors.New("receipt number is required"))
	}
	if in.Date.IsZero() {
		errs = append(errs, errors.New("date is required"))
	}
	if in.CustomerID == "" {
		errs = append(errs, errors.New("customer is required"))
	}
	if in.Amount.IsNegative() {
		errs = append(errs, fmt.Errorf("amount %s is negative", in.Amount))
	}
	if in.Payment.Amount.IsNegative() {
		errs = append(errs, fmt.Errorf("payment amount %s is negative", in.Payment.Amount))
	}
	if !extraction.ValidVATRate(in.VAT) {
		errs = append(errs, fmt.Errorf("vat rate %s is out of range", in.VAT))
	}
	if !in.Payment.Method.Valid() {
		errs = append(errs, fmt.Errorf("unknown payment method %q", in.Payment.Method))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if _, err := s.db.GetCustomer(in.CustomerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: customer %s does not exist", ErrInvalidInput, in.CustomerID)
		}
		return fmt.Errorf("getting customer: %w", err)
	}
	return nil
}

// CreateIncome stores a new income. Receipt numbers must be unique.
func (s *Service) CreateIncome(in *Income) (*Income, error) {
	if err := s.validateIncome(in); err != nil {
		return nil, err
	}
	now := s.timeSource.Now()
	in.ID = s.idGenerator.Generate()
	in.CreatedAt, in.UpdatedAt = now, now
	if err := s.db.SaveIncome(in); err != nil {
		return nil, fmt.Errorf("saving income: %w", err)
	}
	return in, nil
}

// UpdateIncome replaces an income, keeping its ID and creation time
func (s *Service) UpdateIncome(id string, in *Income) (*Income, error) {
	existing, err := s.db.GetIncome(id)
	if err != nil {
		return nil, fmt.Errorf("getting income: %w", err)
	}
	in.ID, in.CreatedAt = id, existing.CreatedAt
	if err := s.validateIncome(in); err != nil {
		return nil, err
	}
	in.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveIncome(in); err != nil {
		return nil, fmt.Errorf("saving income: %w", err)
	}
	return in, nil
}

// GetIncome retrieves an income by ID
func (s *Service) GetIncome(id string) (*Income, error) {
	in, err := s.db.GetIncome(id)
	if err != nil {
		return nil, fmt.Errorf("getting income: %w", err)
	}
	return in, nil
}

// ListIncomes returns one page of incomes matching q, newest first
func (s *Service) ListIncomes(q ListQuery) (Page[*Income], error) {
	incomes, err := s.db.ListIncomes()
	if err != nil {
		return Page[*Income]{}, fmt.Errorf("listing incomes: %w", err)
	}
	incomes = slices.DeleteFunc(incomes, func(in *Income) bool {
		return !q.matches(in.Date, in.Amount, in.CustomerID)
	})
	slices.SortFunc(incomes, func(a, b *Income) int {
		return newestFirst(a.Date, a.CreatedAt, b.Date, b.CreatedAt)
	})
	return paginate(incomes, q), nil
}

// DeleteIncome removes an income
func (s *Service) DeleteIncome(id string) error {
	if err := s.db.DeleteIncome(id); err != nil {
		return fmt.Errorf("deleting income: %w", err)
	}
	return nil
}

// DeleteAllIncomes removes every income and returns how many there were
func (s *Service) DeleteAllIncomes() (int, error) {
	n, err := s.db.DeleteAllIncomes()
	if err != nil {
		return 0, fmt.Errorf("deleting incomes: %w", err)
	}
	return n, nil
}
