package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github/itish2003/pdfchat/testutil"
)

func newTestExtractor(t *testing.T) *PDFExtractor {
	t.Helper()
	ex, err := NewPDFExtractor("", "", zap.NewNop())
	require.NoError(t, err)
	return ex
}

func TestIsPDFMimeType(t *testing.T) {
	tests := []struct {
		declared string
		want     bool
	}{
		{"application/pdf", true},
		{"Application/PDF", true},
		{"application/pdf; name=report.pdf", true},
		{"text/plain", false},
		{"application/octet-stream", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPDFMimeType(tt.declared))
		})
	}
}

func TestPDFExtractor_RejectsDeclaredNonPDF(t *testing.T) {
	ex := newTestExtractor(t)

	// a real PDF declared as text is still rejected: only the declared type counts
	_, err := ex.Ingest(testutil.BuildPDF("hello"), "text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPDFExtractor_ParseFailure(t *testing.T) {
	ex := newTestExtractor(t)

	_, err := ex.Ingest([]byte("just some text pretending to be a pdf"), PDFMimeType)
	assert.ErrorIs(t, err, ErrParseFailure)

	_, err = ex.Ingest(nil, PDFMimeType)
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestPDFExtractor_ExtractsPages(t *testing.T) {
	ex := newTestExtractor(t)

	pages, err := ex.Ingest(testutil.BuildPDF("The capital of Freedonia is Sylvania.", "", "Second page text"), PDFMimeType)
	require.NoError(t, err)
	require.Len(t, pages, 2, "blank page is skipped")
	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Freedonia")
	assert.Equal(t, 3, pages[1].Number)
	assert.Contains(t, pages[1].Text, "Second page")
}

func TestPDFExtractor_NoText(t *testing.T) {
	ex := newTestExtractor(t)

	_, err := ex.Ingest(testutil.BuildPDF(""), PDFMimeType)
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestNewPDFExtractor_UnknownBackend(t *testing.T) {
	_, err := NewPDFExtractor("pdfium", "", zap.NewNop())
	assert.Error(t, err)
}
