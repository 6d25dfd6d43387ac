package ledger

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultPageLimit = 100

// ListQuery filters and pages a list of expenses or incomes. Zero values mean
// no filter. EndDate includes the whole day it falls on.
type ListQuery struct {
	Page      int
	Limit     int
	StartDate *time.Time
	EndDate   *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	// PartyID is the supplier of an expense or the customer of an income
	PartyID string
}

// Pagination describes where a page sits in the full result
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// Page is one page of a listing
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func (q ListQuery) matches(date time.Time, amount decimal.Decimal, partyID string) bool {
	if !withinRange(date, q.StartDate, q.EndDate) {
		return false
	}
	if q.MinAmount != nil && amount.LessThan(*q.MinAmount) {
		return false
	}
	if q.MaxAmount != nil && amount.GreaterThan(*q.MaxAmount) {
		return false
	}
	return q.PartyID == "" || q.PartyID == partyID
}

// withinRange reports whether t falls between start and the end of the day of
// end. Nil bounds are open.
func withinRange(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && !t.Before(end.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

// paginate cuts one page out of items, which must already be filtered and
// sorted.
func paginate[T any](items []T, q ListQuery) Page[T] {
	page, limit := max(q.Page, 1), q.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}

	total := len(items)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	data := items[start:end]
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data: data,
		Pagination: Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: (total + limit - 1) / limit,
		},
	}
}

// newestFirst orders records by date, most recent first, breaking ties on
// creation time.
func newestFirst(aDate, aCreated, bDate, bCreated time.Time) int {
	if c := bDate.Compare(aDate); c != 0 {
		return c
	}
	return bCreated.Compare(aCreated)
}

func sortByName[T any](items []T, name func(T) string) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(strings.ToLower(name(a)), strings.ToLower(name(b)))
	})
}
