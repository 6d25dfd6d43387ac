package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/zombor/bookkeeping/internal/extraction"
)

// standardVATRate applies to expenses and imported rows that give no VAT rate
var standardVATRate = decimal.NewFromInt(17)

// Spreadsheet columns, keyed by normalised header. Hebrew and English headers
// name the same column.
const (
	colDate          = "date"
	colSupplier      = "supplier"
	colClient        = "client"
	colCategory      = "category"
	colAmount        = "amount"
	colVAT           = "vat"
	colPaymentMethod = "paymentmethod"
	colDescription   = "description"
	colReceiptNumber = "receiptnumber"
	colReference     = "reference"
)

var columnAliases = map[string]string{
	"תאריך":      colDate,
	"ספק":        colSupplier,
	"לקוח":       colClient,
	"קטגוריה":    colCategory,
	"סכום":       colAmount,
	`מע"מ`:       colVAT,
	"אופןהתשלום": colPaymentMethod,
	"תיאור":      colDescription,
	"מספרקבלה":   colReceiptNumber,
	"אסמכתא":     colReference,

	colDate:          colDate,
	colSupplier:      colSupplier,
	colClient:        colClient,
	"customer":       colClient,
	colCategory:      colCategory,
	colAmount:        colAmount,
	colVAT:           colVAT,
	colPaymentMethod: colPaymentMethod,
	colDescription:   colDescription,
	colReceiptNumber: colReceiptNumber,
	colReference:     colReference,
}

func normalizeHeader(h string) string {
	h = strings.ToLower(extraction.Normalize(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// ImportSummary reports how a spreadsheet import went. Rows that fail are
// skipped and described in Errors.
type ImportSummary struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (s *ImportSummary) fail(row int, err error) {
	s.Failed++
	s.Errors = append(s.Errors, fmt.Sprintf("row %d: %v", row, err))
}

// sheetRow is one data row of a spreadsheet, addressed by column
type sheetRow map[string]string

// readSheet returns the data rows of the first sheet of an xlsx workbook.
// Cell values are raw, so dates come back as serial numbers.
func readSheet(r io.Reader) ([]sheetRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook: %w", ErrUnsupportedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		columns[i] = columnAliases[normalizeHeader(h)]
	}

	out := make([]sheetRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		row := make(sheetRow)
		for i, v := range cells {
			if i < len(columns) && columns[i] != "" {
				row[columns[i]] = strings.TrimSpace(v)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (r sheetRow) empty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// date reads a serial or written date. Anything unreadable is today.
func (r sheetRow) date(today time.Time) time.Time {
	v := r[colDate]
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	for _, layout := range []string{time.DateOnly, "02/01/2006", "2/1/2006", "02.01.2006", "2.1.2006", "02-01-2006"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return today
}

func parseMoney(v string) (decimal.Decimal, error) {
	v = strings.NewReplacer(",", "", "₪", "", " ", "").Replace(v)
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(v)
}

func (r sheetRow) amount() (decimal.Decimal, error) {
	amount, err := parseMoney(r[colAmount])
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", r[colAmount], err)
	}
	return amount, nil
}

func (r sheetRow) vat() (decimal.Decimal, error) {
	v := strings.TrimSuffix(r[colVAT], "%")
	if v == "" {
		return standardVATRate, nil
	}
	rate, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("vat %q: %w", r[colVAT], err)
	}
	return rate, nil
}

func (r sheetRow) require(columns ...string) error {
	var errs []error
	for _, c := range columns {
		if r[c] == "" {
			errs = append(errs, fmt.Errorf("%s is required", c))
		}
	}
	return errors.Join(errs...)
}

// ImportExpenses adds every expense row of an xlsx workbook. Suppliers are
// matched by name and created when missing.
func (s *Service) ImportExpenses(r io.Reader) (*ImportSummary, error) {
	rows, err := readSheet(r)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{}
	for i, row := range rows {
		if row.empty() {
			continue
		}
		if err := s.importExpense(row); err != nil {
			summary.fail(i+2, err)
			continue
		}
		summary.Imported++
	}

	slog.Info("Imported expenses", "imported", summary.Imported, "failed", summary.Failed)
	return summary, nil
}

func (s *Service) importExpense(row sheetRow) error {
	if err := row.require(colSupplier, colPaymentMethod); err != nil {
		return err
	}
	method, err := extraction.ParsePaymentMethod(row[colPaymentMethod])
	if err != nil {
		return err
	}
	amount, err := row.amount()
	if err != nil {
		return err
	}
	vat, err := row.vat()
	if err != nil {
		return err
	}
	category, err := extraction.ParseCategory(row[colCategory])
	if err != nil {
		category = s.config.DefaultCategory
	}

	supplier, err := s.ResolveSupplier(row[colSupplier])
	if err != nil {
		return err
	}

	_, err = s.CreateExpense(&Expense{
		ReferenceNumber: row[colReference],
		Date:            row.date(s.today()),
		SupplierID:      supplier.ID,
		Category:        category,
		Amount:          amount,
		VAT:             vat,
		PaymentMethod:   method,
		Source:          SourceImport,
	})
	return err
}

// ImportIncomes adds every income row of an xlsx workbook. Customers are
// matched by name and created when missing. Rows without a receipt number get
// a generated one.
func (s *Service) ImportIncomes(r io.Reader) (*ImportSummary, error) {
	rows, err := readSheet(r)
	if err != nil {
		return nil, err
	}

	customers, err := s.db.ListCustomers()
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	byName := make(map[string]*Customer, len(customers))
	for _, c := range customers {
		byName[strings.ToLower(c.Name)] = c
	}

	summary := &ImportSummary{}
	for i, row := range rows {
		if row.empty() {
			continue
		}
		if err := s.importIncome(row, byName); err != nil {
			summary.fail(i+2, err)
			continue
		}
		summary.Imported++
	}

	slog.Info("Imported incomes", "imported", summary.Imported, "failed", summary.Failed)
	return summary, nil
}

func (s *Service) importIncome(row sheetRow, customers map[string]*Customer) error {
	if err := row.require(colDate, colClient, colAmount, colPaymentMethod, colDescription); err != nil {
		return err
	}
	method, err := extraction.ParsePaymentMethod(row[colPaymentMethod])
	if err != nil {
		return err
	}
	amount, err := row.amount()
	if err != nil {
		return err
	}
	vat, err := row.vat()
	if err != nil {
		return err
	}

	key := strings.ToLower(row[colClient])
	customer, ok := customers[key]
	if !ok {
		if customer, err = s.CreateCustomer(&Customer{Name: row[colClient]}); err != nil {
			return err
		}
		customers[key] = customer
	}

	receiptNumber := row[colReceiptNumber]
	if receiptNumber == "" {
		receiptNumber = "import-" + s.idGenerator.Generate()
	}

	_, err = s.CreateIncome(&Income{
		ReceiptNumber: receiptNumber,
		Date:          row.date(s.today()),
		CustomerID:    customer.ID,
		Amount:        amount,
		VAT:           vat,
		Payment:       Payment{Method: method, Amount: amount},
		Details:       row[colDescription],
	})
	return err
}

func (s *Service) today() time.Time {
	now := s.timeSource.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ExportFormat is a file format expenses can be exported as
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
)

// ContentType returns the MIME type of the format
func (f ExportFormat) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// expenseRecord is one exported expense
type expenseRecord struct {
	Date            string `csv:"date"`
	ReferenceNumber string `csv:"referenceNumber"`
	Supplier        string `csv:"supplier"`
	Category        string `csv:"category"`
	Amount          string `csv:"amount"`
	VAT             string `csv:"vat"`
	PaymentMethod   string `csv:"paymentMethod"`
	Source          string `csv:"source"`
}

var expenseHeaders = []string{"תאריך", "אסמכתא", "ספק", "קטגוריה", "סכום", `מע"מ`, "אופן התשלום", "מקור"}

func (r expenseRecord) values() []any {
	return []any{r.Date, r.ReferenceNumber, r.Supplier, r.Category, r.Amount, r.VAT, r.PaymentMethod, r.Source}
}

func (s *Service) expenseRecords() ([]expenseRecord, error) {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	suppliers, err := s.db.ListSuppliers()
	if err != nil {
		return nil, fmt.Errorf("listing suppliers: %w", err)
	}
	names := make(map[string]string, len(suppliers))
	for _, sup := range suppliers {
		names[sup.ID] = sup.Name
	}

	slices.SortFunc(expenses, func(a, b *Expense) int { return a.Date.Compare(b.Date) })

	records := make([]expenseRecord, 0, len(expenses))
	for _, e := range expenses {
		records = append(records, expenseRecord{
			Date:            e.Date.Format(time.DateOnly),
			ReferenceNumber: e.ReferenceNumber,
			Supplier:        names[e.SupplierID],
			Category:        string(e.Category),
			Amount:          e.Amount.StringFixed(2),
			VAT:             e.VAT.String(),
			PaymentMethod:   string(e.PaymentMethod),
			Source:          string(e.Source),
		})
	}
	return records, nil
}

// ExportExpenses writes every expense, oldest first, in the given format
func (s *Service) ExportExpenses(w io.Writer, format ExportFormat) error {
	records, err := s.expenseRecords()
	if err != nil {
		return err
	}

	switch format {
	case FormatCSV:
		if err := gocsv.Marshal(records, w); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		return nil
	case FormatXLSX:
		return writeExpenseWorkbook(w, records)
	default:
		return fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, format)
	}
}

func writeExpenseWorkbook(w io.Writer, records []expenseRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Expenses"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range expenseHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for row, r := range records {
		for col, v := range r.values() {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "B", 14)
	_ = f.SetColWidth(sheet, "C", "C", 28)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}
