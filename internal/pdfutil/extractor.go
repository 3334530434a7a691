// Package pdfutil validates and extracts text from PDF documents using
// ledongthuc/pdf.
package pdfutil

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// PageCount parses the PDF structure and returns the number of pages. An
// error means the bytes are not a structurally valid PDF.
func PageCount(data []byte) (int, error) {
	doc, err := newReader(data)
	if err != nil {
		return 0, err
	}
	return doc.NumPage(), nil
}

// ExtractText returns the plain text of every page in page order, pages
// separated by a line break, surrounding whitespace trimmed.
func ExtractText(data []byte) (string, error) {
	doc, err := newReader(data)
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	return strings.TrimSpace(builder.String()), nil
}

func newReader(data []byte) (*pdf.Reader, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("new pdf reader: %w", err)
	}
	return doc, nil
}
