// Package pdf is the PDF engine boundary: native text-layer access with
// an explicit page count, and page rasterization for the image-based
// fallback extractors. The pipeline never parses PDF internals itself.
package pdf

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is an open PDF exposing its native text layer.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int

	// PageText returns the native text of a page (1-based). An error
	// means the text layer of that page could not be read; callers are
	// expected to fall back to OCR rather than abort.
	PageText(pageNumber int) (string, error)

	Close() error
}

// Engine opens PDF documents.
type Engine interface {
	Open(path string) (Document, error)
}

// NativeEngine reads the embedded text layer directly from the file.
type NativeEngine struct{}

// NewNativeEngine creates the default text-layer engine.
func NewNativeEngine() *NativeEngine {
	return &NativeEngine{}
}

// Open opens the PDF at path.
func (e *NativeEngine) Open(path string) (Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &nativeDocument{file: f, reader: reader}, nil
}

type nativeDocument struct {
	file   *os.File
	reader *pdf.Reader
}

func (d *nativeDocument) PageCount() int {
	return d.reader.NumPage()
}

func (d *nativeDocument) PageText(pageNumber int) (text string, err error) {
	// The underlying parser panics on malformed content streams;
	// recover so a bad page degrades to the OCR path.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: text layer unreadable: %v", pageNumber, r)
		}
	}()

	if pageNumber < 1 || pageNumber > d.reader.NumPage() {
		return "", fmt.Errorf("page %d out of range (1..%d)", pageNumber, d.reader.NumPage())
	}

	page := d.reader.Page(pageNumber)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", pageNumber)
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", pageNumber, err)
	}
	return strings.TrimSpace(text), nil
}

func (d *nativeDocument) Close() error {
	return d.file.Close()
}
