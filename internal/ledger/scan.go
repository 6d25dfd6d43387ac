package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/zombor/bookkeeping/internal/extraction"
	"github.com/zombor/bookkeeping/internal/scanning"
)

var (
	filenameNoise  = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	filenameSpaces = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	// Letters in any script survive
	base = filenameNoise.ReplaceAllString(base, "")
	base = strings.TrimSpace(filenameSpaces.ReplaceAllString(base, " "))

	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	if base == "" {
		base = "receipt"
	}
	if filenameNoise.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	return base + ext
}

// uploadContentType decides whether an upload can be read and returns the
// content type to read it as. The bytes decide for PDFs; images are only
// accepted when the service is configured for them.
func (s *Service) uploadContentType(u Upload) (string, error) {
	if scanning.IsPDF(u.Data) {
		return "application/pdf", nil
	}

	if s.config.AcceptImages {
		if scanning.IsImage(u.ContentType) {
			return u.ContentType, nil
		}
		switch strings.ToLower(filepath.Ext(u.Filename)) {
		case ".png":
			return "image/png", nil
		case ".jpg", ".jpeg":
			return "image/jpeg", nil
		case ".heic", ".heif":
			return "image/heic", nil
		}
	}

	return "", fmt.Errorf("%s (%s): %w", u.Filename, u.ContentType, ErrUnsupportedFile)
}

// readUpload stores the upload, extracts its text and always removes the
// stored file again
func (s *Service) readUpload(ctx context.Context, u Upload) (string, error) {
	contentType, err := s.uploadContentType(u)
	if err != nil {
		return "", err
	}

	name, err := s.storage.Save(fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(u.Filename)), u.Data)
	if err != nil {
		return "", fmt.Errorf("saving upload: %w", err)
	}
	defer func() {
		if err := s.storage.Delete(name); err != nil {
			slog.Warn("Failed to delete uploaded file", "filename", name, "error", err)
		}
	}()

	data, err := s.storage.Get(name)
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}

	text, err := s.text.ExtractText(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to extract receipt text",
			"filename", u.Filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return "", fmt.Errorf("extracting text: %w", err)
	}
	return text, nil
}

// PreviewReceipt reads the fields of a receipt without storing anything, to
// pre-fill the expense form. A document with no readable text yields the
// default fields.
func (s *Service) PreviewReceipt(ctx context.Context, u Upload) (*ScanResult, error) {
	text, err := s.readUpload(ctx, u)
	if err != nil && !errors.Is(err, scanning.ErrNoText) {
		return nil, err
	}

	fields := s.fields.Extract(text)
	if !fields.Category.Valid() {
		fields.Category = s.config.DefaultCategory
	}
	return &ScanResult{Fields: fields, Text: text}, nil
}

// ScanExpense reads a receipt and records it as an expense, resolving or
// creating its supplier
func (s *Service) ScanExpense(ctx context.Context, u Upload) (*Expense, error) {
	text, err := s.readUpload(ctx, u)
	if errors.Is(err, scanning.ErrNoText) {
		return nil, fmt.Errorf("%s has no readable text: %w", u.Filename, ErrUnsupportedFile)
	}
	if err != nil {
		return nil, err
	}

	fields := s.fields.Extract(text)

	category := fields.Category
	if !category.Valid() {
		slog.Info("Scanned category unknown, using default",
			"category", category,
			"default", s.config.DefaultCategory,
		)
		category = s.config.DefaultCategory
	}

	paymentMethod := fields.PaymentMethod
	if !paymentMethod.Valid() {
		paymentMethod = extraction.PaymentCredit
	}

	date, err := time.Parse(time.DateOnly, fields.Date)
	if err != nil {
		date = s.timeSource.Now()
	}

	supplier, err := s.ResolveSupplier(fields.Supplier)
	if err != nil {
		return nil, fmt.Errorf("resolving supplier: %w", err)
	}

	return s.CreateExpense(&Expense{
		ReferenceNumber: fields.DocumentNumber,
		Date:            date,
		SupplierID:      supplier.ID,
		Category:        category,
		Amount:          fields.Amount,
		VAT:             fields.VATRate,
		PaymentMethod:   paymentMethod,
		Attachment:      sanitizeFilename(u.Filename),
		Source:          SourceScan,
	})
}

// ScanExpenses scans each upload on its own. Every upload gets an outcome;
// one failure does not stop the rest.
func (s *Service) ScanExpenses(ctx context.Context, uploads []Upload) []ScanOutcome {
	outcomes := make([]ScanOutcome, 0, len(uploads))
	for _, u := range uploads {
		outcome := ScanOutcome{Filename: u.Filename}
		if err := ctx.Err(); err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}

		expense, err := s.ScanExpense(ctx, u)
		if err != nil {
			slog.Warn("Failed to scan receipt", "filename", u.Filename, "error", err)
			outcome.Error = err.Error()
		} else {
			outcome.Expense = expense
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
