package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github/itish2003/pdfchat/models"
)

// Gemini accepts at most this many contents per EmbedContent call.
const geminiEmbedBatch = 100

// GeminiProvider embeds with a Gemini embedding model and answers with a
// Gemini chat model.
type GeminiProvider struct {
	client          *genai.Client
	embeddingModel  string
	chatModel       string
	maxOutputTokens int32
	logger          *zap.Logger
}

func NewGeminiProvider(ctx context.Context, apiKey, embeddingModel, chatModel string, maxOutputTokens int, logger *zap.Logger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:          client,
		embeddingModel:  embeddingModel,
		chatModel:       chatModel,
		maxOutputTokens: int32(maxOutputTokens),
		logger:          logger,
	}, nil
}

func (g *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, geminiEmbedBatch) {
		got, err := g.embed(ctx, batch, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, got...)
	}
	if err := checkVectors(vectors, len(texts)); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (g *GeminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if err := checkVectors(vectors, 1); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *GeminiProvider) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Role: "user", Parts: []*genai.Part{{Text: t}}}
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, contents, &genai.EmbedContentConfig{
		TaskType: taskType,
	})
	if err != nil {
		return nil, providerError("gemini embed", err)
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, e.Values)
	}
	g.logger.Debug("gemini embeddings received", zap.Int("texts", len(texts)), zap.Int("vectors", len(vectors)))
	return vectors, nil
}

func (g *GeminiProvider) Answer(ctx context.Context, question string, passages []models.Passage) (*models.GeneratedAnswer, error) {
	prompt, err := BuildAnswerPrompt(question, passages)
	if err != nil {
		return nil, err
	}

	result, err := g.client.Models.GenerateContent(ctx, g.chatModel, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens:  g.maxOutputTokens,
		SafetySettings:   safetySettings(),
		ResponseMIMEType: "application/json",
		ResponseSchema:   answerSchema(),
	})
	if err != nil {
		return nil, providerError("gemini generate", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no candidates", ErrProvider)
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	raw := sb.String()
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: gemini returned an empty answer", ErrProvider)
	}

	answer := parseAttributedAnswer(raw, passages)
	if !answer.Attributed {
		g.logger.Warn("gemini reply was not structured, answering without attribution")
	}
	return answer, nil
}
