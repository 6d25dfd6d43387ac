package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Chain tries extractors in order and returns the first non-empty text. A
// text layer engine usually comes first and an OCR transcriber last, so
// scanned PDFs and photos fall through to OCR.
type Chain struct {
	extractors []TextExtractor
}

// NewChain creates a Chain over the given extractors
func NewChain(extractors ...TextExtractor) *Chain {
	return &Chain{extractors: extractors}
}

// ExtractText returns the first text any extractor finds. When all of them
// fail the errors are joined.
func (c *Chain) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	var errs []error
	for i, e := range c.extractors {
		text, err := e.ExtractText(ctx, data, contentType)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = ErrNoText
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if !errors.Is(err, ErrNoText) && !errors.Is(err, ErrUnsupportedContent) {
			slog.Warn("Text extraction failed, trying next extractor",
				"extractor", fmt.Sprintf("%T", e),
				"position", i,
				"error", err,
			)
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrNoText
	}
	return "", errors.Join(errs...)
}

// Close closes every extractor
func (c *Chain) Close() error {
	var errs []error
	for _, e := range c.extractors {
		errs = append(errs, e.Close())
	}
	return errors.Join(errs...)
}
