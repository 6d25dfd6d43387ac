package ledger

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ReportCurrency is the currency every amount in the ledger is kept in
const ReportCurrency = money.ILS

// Amount is a total with its display form
type Amount struct {
	Value   decimal.Decimal `json:"value"`
	Display string          `json:"display"`
}

func newAmount(v decimal.Decimal) Amount {
	currency := money.GetCurrency(ReportCurrency)
	cents := v.Mul(decimal.New(1, int32(currency.Fraction))).Round(0).IntPart()
	return Amount{Value: v, Display: money.New(cents, ReportCurrency).Display()}
}

// IncomeVsExpenseReport compares what came in with what went out over a period
type IncomeVsExpenseReport struct {
	StartDate    time.Time  `json:"startDate"`
	EndDate      time.Time  `json:"endDate"`
	TotalIncome  Amount     `json:"totalIncome"`
	TotalExpense Amount     `json:"totalExpense"`
	Net          Amount     `json:"net"`
	Incomes      []*Income  `json:"incomes"`
	Expenses     []*Expense `json:"expenses"`
}

// Group is the total of the records sharing one key
type Group struct {
	Key         string          `json:"key"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Display     string          `json:"display"`
}

// Grouping keys accepted by the analysis reports
const (
	GroupByCustomer      = "customer"
	GroupByCategory      = "category"
	GroupByDate          = "date"
	GroupByPaymentMethod = "paymentMethod"
)

func checkPeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidInput)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date is before start date", ErrInvalidInput)
	}
	return nil
}

func (s *Service) incomesBetween(start, end time.Time) ([]*Income, error) {
	incomes, err := s.db.ListIncomes()
	if err != nil {
		return nil, fmt.Errorf("listing incomes: %w", err)
	}
	incomes = slices.DeleteFunc(incomes, func(in *Income) bool { return !withinRange(in.Date, &start, &end) })
	slices.SortFunc(incomes, func(a, b *Income) int { return a.Date.Compare(b.Date) })
	return incomes, nil
}

func (s *Service) expensesBetween(start, end time.Time) ([]*Expense, error) {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	expenses = slices.DeleteFunc(expenses, func(e *Expense) bool { return !withinRange(e.Date, &start, &end) })
	slices.SortFunc(expenses, func(a, b *Expense) int { return a.Date.Compare(b.Date) })
	return expenses, nil
}

// IncomeVsExpense totals incomes and expenses dated within [start, end]
func (s *Service) IncomeVsExpense(start, end time.Time) (*IncomeVsExpenseReport, error) {
	if err := checkPeriod(start, end); err != nil {
		return nil, err
	}
	incomes, err := s.incomesBetween(start, end)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expensesBetween(start, end)
	if err != nil {
		return nil, err
	}

	totalIncome, totalExpense := decimal.Zero, decimal.Zero
	for _, in := range incomes {
		totalIncome = totalIncome.Add(in.Amount)
	}
	for _, e := range expenses {
		totalExpense = totalExpense.Add(e.Amount)
	}

	return &IncomeVsExpenseReport{
		StartDate:    start,
		EndDate:      end,
		TotalIncome:  newAmount(totalIncome),
		TotalExpense: newAmount(totalExpense),
		Net:          newAmount(totalIncome.Sub(totalExpense)),
		Incomes:      incomes,
		Expenses:     expenses,
	}, nil
}

// groupTotals sums amount per key and returns the groups sorted by key
func groupTotals[T any](items []T, key func(T) string, amount func(T) decimal.Decimal) []Group {
	index := make(map[string]int)
	groups := []Group{}
	for _, item := range items {
		k := key(item)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k, TotalAmount: decimal.Zero})
		}
		groups[i].Count++
		groups[i].TotalAmount = groups[i].TotalAmount.Add(amount(item))
	}
	for i := range groups {
		groups[i].Display = newAmount(groups[i].TotalAmount).Display
	}
	slices.SortFunc(groups, func(a, b Group) int { return cmp.Compare(a.Key, b.Key) })
	return groups
}

// IncomeAnalysis groups incomes dated within [start, end] by customer name,
// date or payment method
func (s *Service) IncomeAnalysis(groupBy string, start, end time.Time) ([]Group, error) {
	if err := checkPeriod(start, end); err != nil {
		return nil, err
	}

	var key func(*Income) string
	switch groupBy {
	case GroupByCustomer:
		names, err := s.customerNames()
		if err != nil {
			return nil, err
		}
		key = func(in *Income) string { return cmp.Or(names[in.CustomerID], in.CustomerID) }
	case GroupByDate:
		key = func(in *Income) string { return in.Date.Format(time.DateOnly) }
	case GroupByPaymentMethod:
		key = func(in *Income) string { return string(in.Payment.Method) }
	default:
		return nil, fmt.Errorf("%w: cannot group incomes by %q", ErrInvalidInput, groupBy)
	}

	incomes, err := s.incomesBetween(start, end)
	if err != nil {
		return nil, err
	}
	return groupTotals(incomes, key, func(in *Income) decimal.Decimal { return in.Amount }), nil
}

// ExpenseAnalysis groups expenses dated within [start, end] by category, date
// or payment method
func (s *Service) ExpenseAnalysis(groupBy string, start, end time.Time) ([]Group, error) {
	if err := checkPeriod(start, end); err != nil {
		return nil, err
	}

	var key func(*Expense) string
	switch groupBy {
	case GroupByCategory:
		key = func(e *Expense) string { return string(e.Category) }
	case GroupByDate:
		key = func(e *Expense) string { return e.Date.Format(time.DateOnly) }
	case GroupByPaymentMethod:
		key = func(e *Expense) string { return string(e.PaymentMethod) }
	default:
		return nil, fmt.Errorf("%w: cannot group expenses by %q", ErrInvalidInput, groupBy)
	}

	expenses, err := s.expensesBetween(start, end)
	if err != nil {
		return nil, err
	}
	return groupTotals(expenses, key, func(e *Expense) decimal.Decimal { return e.Amount }), nil
}

func (s *Service) customerNames() (map[string]string, error) {
	customers, err := s.db.ListCustomers()
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	names := make(map[string]string, len(customers))
	for _, c := range customers {
		names[c.ID] = c.Name
	}
	return names, nil
}

