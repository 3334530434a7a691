package pdfutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/takshit12/headycoasaas/internal/pdftest"
)

func TestPageCount(t *testing.T) {
	doc := pdftest.Document(t, 3, "THC: 21.4%")
	count, err := PageCount(doc)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPageCountRejectsGarbage(t *testing.T) {
	_, err := PageCount([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	doc := pdftest.Document(t, 2, "CBD: 0.3%")
	text, err := ExtractText(doc)
	require.NoError(t, err)
	assert.Contains(t, text, "CBD: 0.3%")
	// Surrounding whitespace is trimmed.
	assert.Equal(t, strings.TrimSpace(text), text)
}

func TestExtractTextBlankDocument(t *testing.T) {
	doc := pdftest.Document(t, 1, "")
	text, err := ExtractText(doc)
	require.NoError(t, err)
	assert.Empty(t, text)
}
