package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/bookkeeping/internal/extraction"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// serviceError maps a service error onto a status code. Unexpected errors
// are logged and hidden from the client.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidInput):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnsupportedFile):
		writeError(w, err.Error(), http.StatusUnsupportedMediaType)
	case errors.Is(err, ErrConflict):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", ErrInvalidInput, err)
	}
	return nil
}

// parseDate accepts a plain date or an RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidInput, s)
	}
	return t, nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: number %q", ErrInvalidInput, s)
	}
	return &d, nil
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: number %q", ErrInvalidInput, s)
	}
	return n, nil
}

// parseListQuery reads paging and filters from the query string. partyParam
// names the parameter holding the supplier or customer ID.
func parseListQuery(r *http.Request, partyParam string) (ListQuery, error) {
	v := r.URL.Query()
	q := ListQuery{PartyID: v.Get(partyParam)}

	var err error
	if q.Page, err = optionalInt(v.Get("page")); err != nil {
		return q, err
	}
	if q.Limit, err = optionalInt(v.Get("limit")); err != nil {
		return q, err
	}
	if q.StartDate, err = optionalDate(v.Get("startDate")); err != nil {
		return q, err
	}
	if q.EndDate, err = optionalDate(v.Get("endDate")); err != nil {
		return q, err
	}
	if q.MinAmount, err = optionalDecimal(v.Get("minAmount")); err != nil {
		return q, err
	}
	if q.MaxAmount, err = optionalDecimal(v.Get("maxAmount")); err != nil {
		return q, err
	}
	return q, nil
}

// handleIndex describes the service
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "bookkeeping",
		"status":  "ok",
		"routes":  s.routes,
	})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	type category struct {
		Value extraction.Category `json:"value"`
		Label string              `json:"label"`
	}
	categories := extraction.Categories()
	out := make([]category, len(categories))
	for i, c := range categories {
		out[i] = category{Value: c, Label: c.Label()}
	}
	writeJSON(w, http.StatusOK, out)
}

// Customers

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.service.ListCustomers()
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if customers == nil {
		customers = []*Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c Customer
	if err := decodeJSON(r, &c); err != nil {
		serviceError(w, r, err)
		return
	}
	created, err := s.service.CreateCustomer(&c)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetCustomer(r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var c Customer
	if err := decodeJSON(r, &c); err != nil {
		serviceError(w, r, err)
		return
	}
	updated, err := s.service.UpdateCustomer(r.PathValue("id"), &c)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteCustomer(r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Suppliers

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.service.ListSuppliers()
	if err != nil {
		serviceError(w, r, err)
		return
	}
	if suppliers == nil {
		suppliers = []*Supplier{}
	}
	writeJSON(w, http.StatusOK, suppliers)
}

func (s *Server) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var sup Supplier
	if err := decodeJSON(r, &sup); err != nil {
		serviceError(w, r, err)
		return
	}
	created, err := s.service.CreateSupplier(&sup)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := s.service.GetSupplier(r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sup)
}

func (s *Server) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var sup Supplier
	if err := decodeJSON(r, &sup); err != nil {
		serviceError(w, r, err)
		return
	}
	updated, err := s.service.UpdateSupplier(r.PathValue("id"), &sup)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSupplier(r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Expenses

// expenseRequest is the body of an expense create or update. Dates may be
// plain dates and categories may be Hebrew labels.
type expenseRequest struct {
	ReferenceNumber string           `json:"referenceNumber"`
	Date            string           `json:"date"`
	SupplierID      string           `json:"supplierId"`
	Category        string           `json:"category"`
	Amount          decimal.Decimal  `json:"amount"`
	VAT             *decimal.Decimal `json:"vat"`
	PaymentMethod   string           `json:"paymentMethod"`
	Attachment      string           `json:"attachment"`
}

func (req expenseRequest) expense() (*Expense, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	category, err := extraction.ParseCategory(req.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	method, err := extraction.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	vat := standardVATRate
	if req.VAT != nil {
		vat = *req.VAT
	}
	return &Expense{
		ReferenceNumber: req.ReferenceNumber,
		Date:            date,
		SupplierID:      req.SupplierID,
		Category:        category,
		Amount:          req.Amount,
		VAT:             vat,
		PaymentMethod:   method,
		Attachment:      req.Attachment,
	}, nil
}

func (s *Server) readExpense(r *http.Request) (*Expense, error) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return req.expense()
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "supplier")
	if err != nil {
		serviceError(w, r, err)
		return
	}
	page, err := s.service.ListExpenses(q)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.readExpense(r)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	created, err := s.service.CreateExpense(e)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.service.GetExpense(r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.readExpense(r)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	updated, err := s.service.UpdateExpense(r.PathValue("id"), e)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExpense(r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAllExpenses(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.DeleteAllExpenses()
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deletedCount": n})
}

// Incomes

// incomeRequest is the body of an income create or update
type incomeRequest struct {
	ReceiptNumber      string          `json:"receiptNumber"`
	Date               string          `json:"date"`
	CustomerID         string          `json:"customerId"`
	Amount             decimal.Decimal `json:"amount"`
	VAT                decimal.Decimal `json:"vat"`
	Payment            Payment         `json:"payment"`
	Details            string          `json:"details"`
	ReceiptPrintedDate string          `json:"receiptPrintedDate"`
}

func (req incomeRequest) income() (*Income, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	printed, err := optionalDate(req.ReceiptPrintedDate)
	if err != nil {
		return nil, err
	}
	return &Income{
		ReceiptNumber:      req.ReceiptNumber,
		Date:               date,
		CustomerID:         req.CustomerID,
		Amount:             req.Amount,
		VAT:                req.VAT,
		Payment:            req.Payment,
		Details:            req.Details,
		ReceiptPrintedDate: printed,
	}, nil
}

func (s *Server) readIncome(r *http.Request) (*Income, error) {
	var req incomeRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return req.income()
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r, "customer")
	if err != nil {
		serviceError(w, r, err)
		return
	}
	page, err := s.service.ListIncomes(q)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	in, err := s.readIncome(r)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	created, err := s.service.CreateIncome(in)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetIncome(w http.ResponseWriter, r *http.Request) {
	in, err := s.service.GetIncome(r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	in, err := s.readIncome(r)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	updated, err := s.service.UpdateIncome(r.PathValue("id"), in)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteIncome(r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAllIncomes(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.DeleteAllIncomes()
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deletedCount": n})
}

// Uploads

// parseUploadForm reads a multipart request no larger than the configured cap
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: upload is larger than %d MB", ErrInvalidInput, s.config.MaxUploadBytes>>20)
		}
		return fmt.Errorf("%w: parsing form: %w", ErrInvalidInput, err)
	}
	return nil
}

// readUploadedFile loads one file of a multipart form, guessing its content
// type from the extension when the client sent none
func readUploadedFile(fh *multipart.FileHeader) (Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("opening %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Upload{}, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}

	contentType := strings.ToLower(strings.TrimSpace(fh.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(fh.Filename)) {
		case ".pdf":
			contentType = "application/pdf"
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".heic", ".heif":
			contentType = "image/heic"
		case ".xlsx":
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		default:
			contentType = "application/octet-stream"
		}
	}
	return Upload{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}

func (s *Server) formFile(w http.ResponseWriter, r *http.Request, field string) (Upload, error) {
	if err := s.parseUploadForm(w, r); err != nil {
		return Upload{}, err
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return Upload{}, fmt.Errorf("%w: no file was uploaded in %q", ErrInvalidInput, field)
	}
	return readUploadedFile(files[0])
}

// handleScanReceipt reads a receipt and returns the fields to pre-fill the
// expense form with. Nothing is stored.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	upload, err := s.formFile(w, r, "file")
	if err != nil {
		serviceError(w, r, err)
		return
	}

	result, err := s.service.PreviewReceipt(r.Context(), upload)
	s.metrics.ObserveScan(err == nil)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleUploadReceipts records one expense per uploaded receipt. The response
// is 201 when every file succeeded and 207 when any failed.
func (s *Server) handleUploadReceipts(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUploadForm(w, r); err != nil {
		serviceError(w, r, err)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, "No files were uploaded", http.StatusBadRequest)
		return
	}

	outcomes := s.scanFiles(r.Context(), files, readUploadedFile)

	status := http.StatusCreated
	for _, o := range outcomes {
		s.metrics.ObserveScan(o.Error == "")
		if o.Error != "" {
			status = http.StatusMultiStatus
		}
	}
	writeJSON(w, status, map[string]any{"results": outcomes})
}

// scanFiles reads and scans each file, returning outcomes in upload order.
// Files that cannot be read keep their place with an error outcome.
func (s *Server) scanFiles(ctx context.Context, files []*multipart.FileHeader, read func(*multipart.FileHeader) (Upload, error)) []ScanOutcome {
	outcomes := make([]ScanOutcome, len(files))
	var uploads []Upload
	var positions []int
	for i, fh := range files {
		u, err := read(fh)
		if err != nil {
			outcomes[i] = ScanOutcome{Filename: fh.Filename, Error: err.Error()}
			continue
		}
		uploads = append(uploads, u)
		positions = append(positions, i)
	}
	for j, o := range s.service.ScanExpenses(ctx, uploads) {
		outcomes[positions[j]] = o
	}
	return outcomes
}

func (s *Server) handleImportExpenses(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, s.service.ImportExpenses)
}

func (s *Server) handleImportIncomes(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, s.service.ImportIncomes)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, importFn func(io.Reader) (*ImportSummary, error)) {
	upload, err := s.formFile(w, r, "file")
	if err != nil {
		serviceError(w, r, err)
		return
	}
	summary, err := importFn(bytes.NewReader(upload.Data))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	format := ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = FormatXLSX
	}

	var buf bytes.Buffer
	if err := s.service.ExportExpenses(&buf, format); err != nil {
		serviceError(w, r, err)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="expenses.%s"`, format))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Error writing export", "error", err)
	}
}

// Reports

func reportPeriod(r *http.Request) (time.Time, time.Time, error) {
	v := r.URL.Query()
	if v.Get("startDate") == "" || v.Get("endDate") == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: startDate and endDate are required", ErrInvalidInput)
	}
	start, err := parseDate(v.Get("startDate"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(v.Get("endDate"))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (s *Server) handleIncomeVsExpense(w http.ResponseWriter, r *http.Request) {
	start, end, err := reportPeriod(r)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	report, err := s.service.IncomeVsExpense(start, end)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleIncomeAnalysis(w http.ResponseWriter, r *http.Request) {
	start, end, err := reportPeriod(r)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	groups, err := s.service.IncomeAnalysis(r.URL.Query().Get("groupBy"), start, end)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleExpenseAnalysis(w http.ResponseWriter, r *http.Request) {
	start, end, err := reportPeriod(r)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	groups, err := s.service.ExpenseAnalysis(r.URL.Query().Get("groupBy"), start, end)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}
