package services

import (
	"context"
	"fmt"

	"github/itish2003/pdfchat/models"
)

// Embedder turns text into vectors. Every vector produced for one session has
// the same length.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator writes an answer to question using only the given passages.
type AnswerGenerator interface {
	Answer(ctx context.Context, question string, passages []models.Passage) (*models.GeneratedAnswer, error)
}

// checkVectors rejects provider output that is missing vectors, has empty ones
// or mixes dimensions.
func checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d embeddings for %d texts", ErrProvider, len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: embedding %d is empty", ErrProvider, i)
		}
		if len(v) != len(vectors[0]) {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d", ErrProvider, i, len(v), len(vectors[0]))
		}
	}
	return nil
}

func batches(texts []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += size {
		out = append(out, texts[start:min(start+size, len(texts))])
	}
	return out
}

// MissingKeyProvider stands in for a hosted provider whose API key is not
// configured. The server still starts; every provider call fails.
type MissingKeyProvider struct {
	Provider string
}

func (p MissingKeyProvider) err() error {
	return fmt.Errorf("%w: %s API key not set", ErrProvider, p.Provider)
}

func (p MissingKeyProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, p.err()
}

func (p MissingKeyProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, p.err()
}

func (p MissingKeyProvider) Answer(context.Context, string, []models.Passage) (*models.GeneratedAnswer, error) {
	return nil, p.err()
}
