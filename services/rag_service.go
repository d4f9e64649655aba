package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github/itish2003/pdfchat/models"
)

const defaultSourceLabel = "document.pdf"

// RAGService is the upload and chat pipeline over a single active document.
type RAGService interface {
	Upload(ctx context.Context, filename string, content []byte, mimeType string) (*models.DocumentInfo, error)
	Chat(ctx context.Context, question string) (*models.ChatAnswer, error)
	Document() (*models.DocumentInfo, error)
}

// RAGDependencies are the collaborators a RAGService is assembled from.
type RAGDependencies struct {
	Ingestor  Ingestor
	Chunker   Chunker
	Embedder  Embedder
	Builder   IndexBuilder
	Generator AnswerGenerator
	Sessions  *SessionStore
	Logger    *zap.Logger

	TopK int
	// Timeout bounds each provider call. Zero means no bound.
	Timeout time.Duration
}

type ragServiceImpl struct {
	ingestor  Ingestor
	chunker   Chunker
	embedder  Embedder
	builder   IndexBuilder
	generator AnswerGenerator
	sessions  *SessionStore
	logger    *zap.Logger
	tracer    trace.Tracer
	topK      int
	timeout   time.Duration
}

func NewRAGService(deps RAGDependencies) RAGService {
	sessions := deps.Sessions
	if sessions == nil {
		sessions = NewSessionStore()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	topK := deps.TopK
	if topK <= 0 {
		topK = 4
	}
	return &ragServiceImpl{
		ingestor:  deps.Ingestor,
		chunker:   deps.Chunker,
		embedder:  deps.Embedder,
		builder:   deps.Builder,
		generator: deps.Generator,
		sessions:  sessions,
		logger:    logger,
		tracer:    otel.Tracer("pdfchat/services"),
		topK:      topK,
		timeout:   deps.Timeout,
	}
}

// Upload replaces the active document. Nothing becomes visible to Chat until
// the new index is fully built; a failure at any stage leaves the previous
// document in place.
func (r *ragServiceImpl) Upload(ctx context.Context, filename string, content []byte, mimeType string) (info *models.DocumentInfo, err error) {
	ctx, span := r.tracer.Start(ctx, "RAGService.Upload")
	defer func() { endSpan(span, err) }()

	source := sourceLabel(filename)
	span.SetAttributes(attribute.String("pdfchat.source", source), attribute.Int("pdfchat.bytes", len(content)))
	log := r.logger.With(zap.String("source", source))
	log.Info("processing upload", zap.Int("bytes", len(content)), zap.String("mime", mimeType))

	pages, err := r.ingestor.Ingest(content, mimeType)
	if err != nil {
		log.Warn("ingest failed", zap.Error(err))
		return nil, err
	}

	chunks, err := r.chunker.Split(pages)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no extractable text", ErrParseFailure)
	}
	log.Debug("document chunked", zap.Int("pages", len(pages)), zap.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := r.embedDocuments(ctx, texts)
	if err != nil {
		log.Error("embedding failed", zap.Error(err))
		return nil, err
	}

	passages := make([]models.Passage, len(chunks))
	for i, ch := range chunks {
		passages[i] = models.Passage{
			ID:          uuid.NewString(),
			Ordinal:     i,
			Text:        ch.Text,
			SourceLabel: source,
			Page:        ch.Page,
			Vector:      vectors[i],
		}
	}

	index, err := r.builder.Build(ctx, passages)
	if err != nil {
		log.Error("index build failed", zap.Error(err))
		return nil, err
	}

	session := &Session{
		ID:        uuid.NewString(),
		Source:    source,
		Pages:     pages[len(pages)-1].Number,
		Index:     index,
		CreatedAt: time.Now().UTC(),
	}
	commit := r.sessions.Commit(session)
	log.Info("upload committed",
		zap.String("session", session.ID),
		zap.Int("passages", index.Len()),
		zap.Int("dimensions", index.Dimensions()),
		zap.Uint64("commit", commit))

	result := session.Info()
	return &result, nil
}

// Chat answers question from the active document. The session snapshot taken
// at the start is used for the whole request.
func (r *ragServiceImpl) Chat(ctx context.Context, question string) (out *models.ChatAnswer, err error) {
	ctx, span := r.tracer.Start(ctx, "RAGService.Chat")
	defer func() { endSpan(span, err) }()

	session := r.sessions.Snapshot()
	if session == nil {
		return nil, ErrNoDocumentLoaded
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must be a non-empty string", ErrInvalidInput)
	}
	span.SetAttributes(attribute.String("pdfchat.session", session.ID))

	queryVector, err := r.embedQuery(ctx, question)
	if err != nil {
		r.logger.Error("question embedding failed", zap.Error(err))
		return nil, err
	}

	hits, err := session.Index.Retrieve(ctx, queryVector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}
	retrieved := make([]models.Passage, len(hits))
	for i, h := range hits {
		retrieved[i] = h.Passage
		r.logger.Debug("retrieved passage",
			zap.Int("rank", i+1), zap.Int("ordinal", h.Passage.Ordinal),
			zap.Int("page", h.Passage.Page), zap.Float64("score", h.Score))
	}
	span.SetAttributes(attribute.Int("pdfchat.retrieved", len(retrieved)))

	generated, err := r.answer(ctx, question, retrieved)
	if err != nil {
		r.logger.Error("answer generation failed", zap.Error(err))
		return nil, err
	}

	used := usedPassages(generated, retrieved)
	result := &models.ChatAnswer{
		Text:    generated.Text,
		Sources: distinctSources(used),
		Pages:   distinctPages(used),
	}
	r.logger.Info("chat answered",
		zap.String("session", session.ID),
		zap.Int("retrieved", len(retrieved)),
		zap.Int("used", len(used)),
		zap.Bool("attributed", generated.Attributed))
	return result, nil
}

func (r *ragServiceImpl) Document() (*models.DocumentInfo, error) {
	session := r.sessions.Snapshot()
	if session == nil {
		return nil, ErrNoDocumentLoaded
	}
	info := session.Info()
	return &info, nil
}

func (r *ragServiceImpl) embedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := r.tracer.Start(ctx, "Embedder.EmbedDocuments", trace.WithAttributes(attribute.Int("pdfchat.texts", len(texts))))
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err == nil {
		err = checkVectors(vectors, len(texts))
	}
	err = providerError("embed passages", err)
	endSpan(span, err)
	return vectors, err
}

func (r *ragServiceImpl) embedQuery(ctx context.Context, question string) ([]float32, error) {
	ctx, span := r.tracer.Start(ctx, "Embedder.EmbedQuery")
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	vector, err := r.embedder.EmbedQuery(ctx, question)
	if err == nil && len(vector) == 0 {
		err = fmt.Errorf("%w: empty query embedding", ErrProvider)
	}
	err = providerError("embed question", err)
	endSpan(span, err)
	return vector, err
}

func (r *ragServiceImpl) answer(ctx context.Context, question string, passages []models.Passage) (*models.GeneratedAnswer, error) {
	ctx, span := r.tracer.Start(ctx, "AnswerGenerator.Answer")
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	generated, err := r.generator.Answer(ctx, question, passages)
	if err == nil && generated == nil {
		err = fmt.Errorf("%w: no answer returned", ErrProvider)
	}
	err = providerError("generate answer", err)
	endSpan(span, err)
	return generated, err
}

func (r *ragServiceImpl) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// usedPassages narrows retrieved to what the generator reported using. Without
// attribution every retrieved passage counts as used.
func usedPassages(generated *models.GeneratedAnswer, retrieved []models.Passage) []models.Passage {
	if !generated.Attributed {
		return retrieved
	}
	ids := make(map[string]bool, len(generated.UsedPassageIDs))
	for _, id := range generated.UsedPassageIDs {
		ids[id] = true
	}
	var used []models.Passage
	for _, p := range retrieved {
		if ids[p.ID] {
			used = append(used, p)
		}
	}
	return used
}

func distinctSources(passages []models.Passage) []string {
	sources := []string{}
	seen := make(map[string]bool)
	for _, p := range passages {
		if !seen[p.SourceLabel] {
			seen[p.SourceLabel] = true
			sources = append(sources, p.SourceLabel)
		}
	}
	return sources
}

func distinctPages(passages []models.Passage) []int {
	var pages []int
	seen := make(map[int]bool)
	for _, p := range passages {
		if !seen[p.Page] {
			seen[p.Page] = true
			pages = append(pages, p.Page)
		}
	}
	sort.Ints(pages)
	return pages
}

func sourceLabel(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || strings.TrimSpace(name) == "" {
		return defaultSourceLabel
	}
	return name
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrTimeout) {
			span.SetAttributes(attribute.Bool("pdfchat.timeout", true))
		}
	}
	span.End()
}
