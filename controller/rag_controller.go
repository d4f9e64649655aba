package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github/itish2003/pdfchat/models"
	"github/itish2003/pdfchat/services"
)

const (
	msgNoFile         = "No PDF file uploaded"
	msgOnlyPDF        = "Only PDF files are allowed"
	msgFileTooLarge   = "PDF file is too large"
	msgProcessed      = "PDF processed successfully"
	msgProcessingPDF  = "Error processing PDF: "
	msgNoDocument     = "No PDF loaded. Please upload a PDF first."
	msgInvalidFormat  = "Invalid question format"
	msgChatProcessing = "Error processing chat request"
)

// RAGController handles the HTTP requests for the PDF chat API. It depends on
// the RAGService to do the actual work.
type RAGController struct {
	ragService    services.RAGService
	maxUploadSize int64
	logger        *zap.Logger
}

// NewRAGController creates a controller. maxUploadSize is in bytes.
func NewRAGController(service services.RAGService, maxUploadSize int64, logger *zap.Logger) *RAGController {
	return &RAGController{
		ragService:    service,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// UploadPDF is the handler for POST /api/upload. The file is expected in the
// multipart field "pdf".
func (c *RAGController) UploadPDF(ctx *gin.Context) {
	if c.maxUploadSize > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxUploadSize)
	}

	header, err := ctx.FormFile("pdf")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: msgFileTooLarge})
			return
		}
		c.logger.Debug("upload without pdf field", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgNoFile})
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if !services.IsPDFMimeType(mimeType) {
		c.logger.Debug("upload with wrong content type", zap.String("mime", mimeType))
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgOnlyPDF})
		return
	}

	file, err := header.Open()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgProcessingPDF + err.Error()})
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msgProcessingPDF + err.Error()})
		return
	}

	info, err := c.ragService.Upload(ctx.Request.Context(), header.Filename, content, mimeType)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFormat) {
			ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgOnlyPDF})
			return
		}
		ctx.JSON(statusFor(err), models.ErrorResponse{Error: msgProcessingPDF + err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, models.UploadResponse{
		Message:  msgProcessed,
		Source:   info.Source,
		Pages:    info.Pages,
		Passages: info.Passages,
	})
}

// Chat is the handler for POST /api/chat.
func (c *RAGController) Chat(ctx *gin.Context) {
	var req models.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		// A missing document is reported ahead of a malformed question.
		if _, docErr := c.ragService.Document(); errors.Is(docErr, services.ErrNoDocumentLoaded) {
			ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgNoDocument})
			return
		}
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgInvalidFormat, Details: err.Error()})
		return
	}

	answer, err := c.ragService.Chat(ctx.Request.Context(), req.Question)
	switch {
	case errors.Is(err, services.ErrNoDocumentLoaded):
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgNoDocument})
		return
	case errors.Is(err, services.ErrInvalidInput):
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msgInvalidFormat, Details: err.Error()})
		return
	case err != nil:
		ctx.JSON(statusFor(err), models.ErrorResponse{Error: msgChatProcessing, Details: err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, models.ChatResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
		Pages:   answer.Pages,
	})
}

// Document is the handler for GET /api/document.
func (c *RAGController) Document(ctx *gin.Context) {
	info, err := c.ragService.Document()
	if err != nil {
		if errors.Is(err, services.ErrNoDocumentLoaded) {
			ctx.JSON(http.StatusNotFound, models.ErrorResponse{Error: msgNoDocument})
			return
		}
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, info)
}

// statusFor maps service error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrNoDocumentLoaded):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
