// Package pdftest renders real PDF documents for tests, so validation and
// extraction paths run against genuine files instead of canned byte strings.
package pdftest

import (
	"testing"

	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
)

// Document renders a PDF with the given number of pages. When text is
// non-empty it is written on every page; otherwise the pages stay blank,
// which yields a structurally valid PDF with no extractable text.
func Document(t *testing.T, pages int, text string) []byte {
	t.Helper()
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	for i := 0; i < pages; i++ {
		if i > 0 {
			m.AddPage()
		}
		if text != "" {
			m.Row(10, func() {
				m.Col(12, func() {
					m.Text(text, props.Text{Size: 12})
				})
			})
		}
	}
	buf, err := m.Output()
	if err != nil {
		t.Fatalf("generate pdf: %v", err)
	}
	return buf.Bytes()
}
