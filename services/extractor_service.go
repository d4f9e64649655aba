package services

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"

	"github/itish2003/pdfchat/config"
	"github/itish2003/pdfchat/models"
)

// PDFMimeType is the only declared content type accepted for uploads.
const PDFMimeType = "application/pdf"

// Ingestor turns uploaded bytes into page texts.
type Ingestor interface {
	Ingest(content []byte, declaredMIME string) ([]models.Page, error)
}

// PDFExtractor extracts page text with either ledongthuc/pdf or UniPDF.
type PDFExtractor struct {
	backend string
	logger  *zap.Logger
}

// NewPDFExtractor returns an extractor for the given backend. The unipdf
// backend needs a metered UniDoc license key.
func NewPDFExtractor(backend, licenseKey string, logger *zap.Logger) (*PDFExtractor, error) {
	switch backend {
	case config.PDFBackendLedongthuc, "":
		backend = config.PDFBackendLedongthuc
	case config.PDFBackendUnipdf:
		if err := license.SetMeteredKey(licenseKey); err != nil {
			return nil, fmt.Errorf("failed to set UniDoc license key: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown pdf backend: %s", backend)
	}
	return &PDFExtractor{backend: backend, logger: logger}, nil
}

// Ingest rejects anything not declared as application/pdf, then extracts the
// non-blank pages. The content buffer is not retained.
func (e *PDFExtractor) Ingest(content []byte, declaredMIME string) (pages []models.Page, err error) {
	if !IsPDFMimeType(declaredMIME) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, declaredMIME)
	}
	if detected := mimetype.Detect(content); !detected.Is(PDFMimeType) {
		e.logger.Warn("declared pdf does not look like one", zap.String("detected", detected.String()))
	}

	// Both parsers can panic on malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrParseFailure, r)
		}
	}()

	switch e.backend {
	case config.PDFBackendUnipdf:
		pages, err = extractWithUnipdf(content)
	default:
		pages, err = extractWithLedongthuc(content)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailure, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no extractable text", ErrParseFailure)
	}
	e.logger.Debug("extracted pdf", zap.String("backend", e.backend), zap.Int("pages", len(pages)))
	return pages, nil
}

// IsPDFMimeType reports whether a declared content type is application/pdf,
// ignoring case and parameters.
func IsPDFMimeType(declared string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	return mediaType == PDFMimeType
}

func extractWithLedongthuc(content []byte) ([]models.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	var pages []models.Page
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = appendPage(pages, i, text)
	}
	return pages, nil
}

func extractWithUnipdf(content []byte) ([]models.Page, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = appendPage(pages, i, text)
	}
	return pages, nil
}

func appendPage(pages []models.Page, number int, text string) []models.Page {
	if strings.TrimSpace(text) == "" {
		return pages
	}
	return append(pages, models.Page{Number: number, Text: text})
}
