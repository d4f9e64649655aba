package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github/itish2003/pdfchat/models"
)

const openAIEmbedBatch = 256

// OpenAIProvider talks to the OpenAI API or any server compatible with it.
type OpenAIProvider struct {
	client          openai.Client
	embeddingModel  string
	chatModel       string
	maxOutputTokens int64
	logger          *zap.Logger
}

func NewOpenAIProvider(apiKey, baseURL, embeddingModel, chatModel string, maxOutputTokens int, logger *zap.Logger) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client:          openai.NewClient(opts...),
		embeddingModel:  embeddingModel,
		chatModel:       chatModel,
		maxOutputTokens: int64(maxOutputTokens),
		logger:          logger,
	}
}

func (o *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, openAIEmbedBatch) {
		got, err := o.embed(ctx, batch)
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

func (o *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if err := checkVectors(vectors, 1); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAIProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	if err != nil {
		return nil, providerError("openai embed", err)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = toFloat32(d.Embedding)
	}
	return vectors, nil
}

func (o *OpenAIProvider) Answer(ctx context.Context, question string, passages []models.Passage) (*models.GeneratedAnswer, error) {
	prompt, err := BuildAnswerPrompt(question, passages)
	if err != nil {
		return nil, err
	}

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(o.maxOutputTokens),
	})
	if err != nil {
		return nil, providerError("openai chat", err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: openai returned an empty answer", ErrProvider)
	}

	answer := parseAttributedAnswer(completion.Choices[0].Message.Content, passages)
	if !answer.Attributed {
		o.logger.Warn("openai reply was not structured, answering without attribution")
	}
	return answer, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
