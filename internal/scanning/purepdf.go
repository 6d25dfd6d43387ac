package scanning

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PurePDF reads the text layer of PDFs without cgo. Text is rebuilt row by
// row from glyph positions, so right-to-left scripts come out in visual order.
type PurePDF struct{}

// NewPurePDF creates a pure Go text extractor
func NewPurePDF() *PurePDF {
	return &PurePDF{}
}

// ExtractText returns the text of every page, one row per line
func (p *PurePDF) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if !IsPDF(data) {
		return "", fmt.Errorf("pdf reads PDFs only, got %q: %w", contentType, ErrUnsupportedContent)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("reading text of page %d: %w", i, err)
		}
		for _, row := range rows {
			for _, word := range row.Content {
				text.WriteString(word.S)
			}
			text.WriteString("\n")
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", ErrNoText
	}
	return text.String(), nil
}

// Close is a no-op
func (p *PurePDF) Close() error {
	return nil
}
