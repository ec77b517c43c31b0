// Package ocr provides the OCR engine boundary for the extraction
// pipeline and the content-addressed cache that sits in front of it.
//
// Two recognition surfaces exist: whole-PDF-page recognition used by
// the hybrid extractor's fallback path, and image-region recognition
// used by the table/ROI extractor. Both are implemented against Google
// Cloud backends (Vision and Document AI); the engine is selected by
// configuration.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID (Document AI only)
package ocr

import (
	"context"
	"image"
	"strings"
)

// Options tunes a recognition call. Whitelist constrains the output
// character set, used for title-block regions where only a known
// alphabet appears.
type Options struct {
	// Languages are BCP-47 language hints (e.g. "pt").
	Languages []string

	// Whitelist, when non-empty, restricts recognized output to the
	// listed characters plus whitespace.
	Whitelist string
}

// PageOCR recognizes text on a single page of a PDF document.
type PageOCR interface {
	// RecognizePDFPage extracts text from one page (1-based) of the
	// given PDF bytes.
	RecognizePDFPage(ctx context.Context, pdfBytes []byte, pageNumber int) (string, error)
}

// ImageOCR recognizes text in a raster image region.
type ImageOCR interface {
	// RecognizeImage extracts text from an image.
	RecognizeImage(ctx context.Context, img image.Image, opts Options) (string, error)
}

// applyWhitelist filters recognized text down to the whitelisted
// characters. The cloud backends have no charset constraint of their
// own, so the constraint is enforced on their output.
func applyWhitelist(text, whitelist string) string {
	if whitelist == "" {
		return text
	}
	allowed := make(map[rune]bool, len(whitelist))
	for _, r := range whitelist {
		allowed[r] = true
	}
	var b strings.Builder
	for _, r := range text {
		if allowed[r] || r == ' ' || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
