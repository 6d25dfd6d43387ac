package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcriptionPrompt is shared by the OCR transcribers. The receipt parser
// works on plain text, so the model is asked to copy, not to interpret.
const transcriptionPrompt = `You are transcribing a receipt or invoice, most likely from an Israeli business. The text may be in Hebrew, English or both.

Copy every piece of text you can read, exactly as printed:
- Keep one printed line per output line, top to bottom.
- Keep Hebrew words in logical (reading) order.
- Keep numbers, dates, currency signs (₪, $, €), percent signs and punctuation such as סה"כ and מע"מ exactly as printed.
- Do not translate, summarise, correct or reformat anything.
- Do not add any commentary, headings or markdown.

If the image contains no readable text, return an empty response.`

// maxPages limits how much of a scanned PDF is sent for transcription.
const maxPages = 3

// renderPDF renders the first pages of a PDF as PNG images
func renderPDF(pdfData []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([][]byte, 0, min(doc.NumPage(), maxPages))
	for i := 0; i < doc.NumPage() && i < maxPages; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding PNG: %w", err)
		}
		pages = append(pages, buf.Bytes())
	}
	return pages, nil
}

// imageToPNG re-encodes a JPEG, GIF or HEIC photo as PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Phones upload HEIC, which the standard image package cannot decode
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding %s image: %w: %w", mimeType, ErrUnsupportedContent, err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = normalizeMimeType(mimeType)
	return mimeType == "image/heic" || mimeType == "image/heif"
}

// preparePages turns an upload into the PNG pages sent to a transcriber
func preparePages(data []byte, contentType string) ([][]byte, error) {
	mimeType := normalizeMimeType(contentType)

	switch {
	case IsPDF(data):
		return renderPDF(data)
	case mimeType == "image/png" && !isHEICFormat(data):
		return [][]byte{data}, nil
	case IsImage(mimeType) || isHEICFormat(data):
		converted, err := imageToPNG(data, mimeType)
		if err != nil {
			return nil, err
		}
		return [][]byte{converted}, nil
	}
	return nil, fmt.Errorf("cannot transcribe %q: %w", contentType, ErrUnsupportedContent)
}
