package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github/itish2003/pdfchat/models"
	"github/itish2003/pdfchat/services"
	"github/itish2003/pdfchat/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRAGService struct {
	uploadErr error
	chatErr   error
	answer    *models.ChatAnswer
	doc       *models.DocumentInfo

	uploadedName string
	uploadedMIME string
	question     string
}

func (f *fakeRAGService) Upload(_ context.Context, filename string, _ []byte, mimeType string) (*models.DocumentInfo, error) {
	f.uploadedName, f.uploadedMIME = filename, mimeType
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.doc = &models.DocumentInfo{Source: filename, Pages: 2, Passages: 3}
	return f.doc, nil
}

func (f *fakeRAGService) Chat(_ context.Context, question string) (*models.ChatAnswer, error) {
	f.question = question
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.answer, nil
}

func (f *fakeRAGService) Document() (*models.DocumentInfo, error) {
	if f.doc == nil {
		return nil, services.ErrNoDocumentLoaded
	}
	return f.doc, nil
}

func newTestRouter(svc services.RAGService) *gin.Engine {
	return NewRouter(NewRAGController(svc, 1<<20, zap.NewNop()), zap.NewNop())
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doUpload(t *testing.T, router *gin.Engine, field, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, filename, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doChat(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestUploadPDF_Success(t *testing.T) {
	svc := &fakeRAGService{}
	rec := doUpload(t, newTestRouter(svc), "pdf", "report.pdf", "application/pdf", []byte("%PDF-1.4"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PDF processed successfully", resp.Message)
	assert.Equal(t, "report.pdf", resp.Source)
	assert.Equal(t, 3, resp.Passages)
	assert.Equal(t, "report.pdf", svc.uploadedName)
	assert.Equal(t, "application/pdf", svc.uploadedMIME)
}

func TestUploadPDF_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		field       string
		contentType string
		uploadErr   error
		wantStatus  int
		wantError   string
	}{
		{"missing field", "file", "application/pdf", nil, http.StatusBadRequest, "No PDF file uploaded"},
		{"wrong type", "pdf", "text/plain", nil, http.StatusBadRequest, "Only PDF files are allowed"},
		{"parse failure", "pdf", "application/pdf", fmt.Errorf("%w: bad xref", services.ErrParseFailure), http.StatusInternalServerError, "Error processing PDF: parse failure: bad xref"},
		{"provider failure", "pdf", "application/pdf", fmt.Errorf("%w: quota", services.ErrProvider), http.StatusInternalServerError, "Error processing PDF: provider error: quota"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRAGService{uploadErr: tt.uploadErr}
			rec := doUpload(t, newTestRouter(svc), tt.field, "doc.pdf", tt.contentType, []byte("%PDF-1.4"))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeError(t, rec).Error)
		})
	}
}

func TestUploadPDF_TooLarge(t *testing.T) {
	svc := &fakeRAGService{}
	router := NewRouter(NewRAGController(svc, 1<<10, zap.NewNop()), zap.NewNop())

	rec := doUpload(t, router, "pdf", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 64<<10))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PDF file is too large", decodeError(t, rec).Error)
	assert.Empty(t, svc.uploadedName, "the service never sees the file")
}

func TestUploadPDF_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("raw"))
	rec := httptest.NewRecorder()
	newTestRouter(&fakeRAGService{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No PDF file uploaded", decodeError(t, rec).Error)
}

func TestChat_Success(t *testing.T) {
	svc := &fakeRAGService{
		doc:    &models.DocumentInfo{Source: "doc.pdf"},
		answer: &models.ChatAnswer{Text: "Sylvania.", Sources: []string{"doc.pdf"}, Pages: []int{2}},
	}
	rec := doChat(t, newTestRouter(svc), `{"question":"What is the capital?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Sylvania.", resp.Answer)
	assert.Equal(t, []string{"doc.pdf"}, resp.Sources)
	assert.Equal(t, []int{2}, resp.Pages)
	assert.Equal(t, "What is the capital?", svc.question)
}

func TestChat_Errors(t *testing.T) {
	loaded := &models.DocumentInfo{Source: "doc.pdf"}
	tests := []struct {
		name       string
		doc        *models.DocumentInfo
		chatErr    error
		body       string
		wantStatus int
		wantError  string
	}{
		{"no document", nil, services.ErrNoDocumentLoaded, `{"question":"hi"}`, http.StatusBadRequest, "No PDF loaded. Please upload a PDF first."},
		{"no document and bad body", nil, nil, `{"question":42}`, http.StatusBadRequest, "No PDF loaded. Please upload a PDF first."},
		{"missing question", loaded, nil, `{}`, http.StatusBadRequest, "Invalid question format"},
		{"non-string question", loaded, nil, `{"question":["a"]}`, http.StatusBadRequest, "Invalid question format"},
		{"blank question", loaded, fmt.Errorf("%w: empty", services.ErrInvalidInput), `{"question":"  "}`, http.StatusBadRequest, "Invalid question format"},
		{"provider failure", loaded, fmt.Errorf("embed question: %w: timeout", services.ErrProvider), `{"question":"hi"}`, http.StatusInternalServerError, "Error processing chat request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeRAGService{doc: tt.doc, chatErr: tt.chatErr}
			rec := doChat(t, newTestRouter(svc), tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Contains(t, resp.Details, "timeout")
			}
		})
	}
}

func TestDocumentAndHealth(t *testing.T) {
	svc := &fakeRAGService{}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/document", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svc.doc = &models.DocumentInfo{SessionID: "s1", Source: "doc.pdf", Pages: 4, Passages: 9}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/document", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"doc.pdf"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeRAGService{}).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEndToEnd_UploadThenChat(t *testing.T) {
	logger := zap.NewNop()
	extractor, err := services.NewPDFExtractor("", "", logger)
	require.NoError(t, err)
	chunker, err := services.NewChunker("window", 1000, 200)
	require.NoError(t, err)
	svc := services.NewRAGService(services.RAGDependencies{
		Ingestor:  extractor,
		Chunker:   chunker,
		Embedder:  services.NewHashingEmbedder(128),
		Builder:   services.MemoryIndexBuilder{},
		Generator: services.ExtractiveGenerator{},
		Logger:    logger,
	})
	router := newTestRouter(svc)

	rec := doChat(t, router, `{"question":"What is the capital of Freedonia?"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	pdf := testutil.BuildPDF("The capital of Freedonia is Sylvania.")
	rec = doUpload(t, router, "pdf", "freedonia.pdf", "application/pdf", pdf)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doChat(t, router, `{"question":"What is the capital of Freedonia?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "Sylvania")
	assert.Equal(t, []string{"freedonia.pdf"}, resp.Sources)

	rec = doUpload(t, router, "pdf", "broken.pdf", "application/pdf", []byte("not a pdf at all"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "Error processing PDF: ")

	// the failed upload left the previous document active
	rec = doChat(t, router, `{"question":"What is the capital of Freedonia?"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
