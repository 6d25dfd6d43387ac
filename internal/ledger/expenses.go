package ledger

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zombor/bookkeeping/internal/extraction"
)

// validateExpense checks an expense before it is stored
func (s *Service) validateExpense(e *Expense) error {
	var errs []error
	if e.Date.IsZero() {
		errs = append(errs, errors.New("date is required"))
	}
	if e.SupplierID == "" {
		errs = append(errs, errors.New("supplier is required"))
	}
	if e.Amount.IsNegative() {
		errs = append(errs, fmt.Errorf("amount %s is negative", e.Amount))
	}
	if !extraction.ValidVATRate(e.VAT) {
		errs = append(errs, fmt.Errorf("vat rate %s is out of range", e.VAT))
	}
	if !e.Category.Valid() {
		errs = append(errs, fmt.Errorf("unknown category %q", e.Category))
	}
	if !e.PaymentMethod.Valid() {
		errs = append(errs, fmt.Errorf("unknown payment method %q", e.PaymentMethod))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if _, err := s.db.GetSupplier(e.SupplierID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: supplier %s does not exist", ErrInvalidInput, e.SupplierID)
		}
		return fmt.Errorf("getting supplier: %w", err)
	}
	return nil
}

// CreateExpense stores a new expense
func (s *Service) CreateExpense(e *Expense) (*Expense, error) {
	if e.Source == "" {
		e.Source = SourceManual
	}
	if err := s.validateExpense(e); err != nil {
		return nil, err
	}
	now := s.timeSource.Now()
	e.ID = s.idGenerator.Generate()
	e.CreatedAt, e.UpdatedAt = now, now
	if err := s.db.SaveExpense(e); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return e, nil
}

// UpdateExpense replaces an expense, keeping its ID, source and creation time
func (s *Service) UpdateExpense(id string, e *Expense) (*Expense, error) {
	existing, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	e.ID, e.Source, e.CreatedAt = id, existing.Source, existing.CreatedAt
	if err := s.validateExpense(e); err != nil {
		return nil, err
	}
	e.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveExpense(e); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return e, nil
}

// GetExpense retrieves an expense by ID
func (s *Service) GetExpense(id string) (*Expense, error) {
	e, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns one page of expenses matching q, newest first
func (s *Service) ListExpenses(q ListQuery) (Page[*Expense], error) {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return Page[*Expense]{}, fmt.Errorf("listing expenses: %w", err)
	}
	expenses = slices.DeleteFunc(expenses, func(e *Expense) bool {
		return !q.matches(e.Date, e.Amount, e.SupplierID)
	})
	slices.SortFunc(expenses, func(a, b *Expense) int {
		return newestFirst(a.Date, a.CreatedAt, b.Date, b.CreatedAt)
	})
	return paginate(expenses, q), nil
}

// DeleteExpense removes an expense
func (s *Service) DeleteExpense(id string) error {
	if err := s.db.DeleteExpense(id); err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}
	return nil
}

// DeleteAllExpenses removes every expense and returns how many there were
func (s *Service) DeleteAllExpenses() (int, error) {
	n, err := s.db.DeleteAllExpenses()
	if err != nil {
		return 0, fmt.Errorf("deleting expenses: %w", err)
	}
	return n, nil
}
