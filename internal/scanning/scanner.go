package scanning

import (
	"bytes"
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoText means the document was read but holds no usable text, as with
	// a scanned PDF that has no text layer.
	ErrNoText = errors.New("document has no text")
	// ErrUnsupportedContent means the extractor cannot read this kind of file.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// TextExtractor turns an uploaded receipt into plain text
type TextExtractor interface {
	// ExtractText returns the text of the document
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
	// Close releases resources held by the extractor
	Close() error
}

const pdfMimeType = "application/pdf"

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data looks like a PDF. The content type is only a
// hint; the magic bytes decide.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), pdfMagic)
}

// IsImage reports whether the content type names an image format the OCR
// transcribers can read.
func IsImage(contentType string) bool {
	switch normalizeMimeType(contentType) {
	case "image/png", "image/jpeg", "image/jpg", "image/gif", "image/heic", "image/heif":
		return true
	}
	return false
}

func normalizeMimeType(contentType string) string {
	mimeType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}
