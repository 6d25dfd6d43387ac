package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Fitz reads the text layer of PDFs with MuPDF
type Fitz struct{}

// NewFitz creates a MuPDF backed text extractor
func NewFitz() *Fitz {
	return &Fitz{}
}

// ExtractText returns the text of every page, one page after another
func (f *Fitz) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if !IsPDF(data) {
		return "", fmt.Errorf("fitz reads PDFs only, got %q: %w", contentType, ErrUnsupportedContent)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	var text strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("reading text of page %d: %w", i+1, err)
		}
		text.WriteString(page)
		text.WriteString("\n")
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", ErrNoText
	}
	return text.String(), nil
}

// Close is a no-op; documents are closed after each extraction
func (f *Fitz) Close() error {
	return nil
}
