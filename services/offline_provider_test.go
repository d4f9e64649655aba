package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/pdfchat/models"
)

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()

	docs, err := e.EmbedDocuments(ctx, []string{"The capital of Freedonia is Sylvania.", "Rivers flow north."})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Len(t, docs[0], 64)

	again, err := e.EmbedQuery(ctx, "The capital of Freedonia is Sylvania.")
	require.NoError(t, err)
	assert.Equal(t, docs[0], again)
	assert.InDelta(t, 1.0, CosineSimilarity(docs[0], again), 1e-6)
}

func TestHashingEmbedder_RelatedTextScoresHigher(t *testing.T) {
	e := NewHashingEmbedder(0)
	ctx := context.Background()

	docs, err := e.EmbedDocuments(ctx, []string{
		"Rivers in the valley flow north in spring.",
		"The capital of Freedonia is Sylvania.",
	})
	require.NoError(t, err)
	q, err := e.EmbedQuery(ctx, "What is the capital of Freedonia?")
	require.NoError(t, err)

	assert.Len(t, q, defaultHashingDimensions)
	assert.Greater(t, CosineSimilarity(q, docs[1]), CosineSimilarity(q, docs[0]))
}

func TestHashingEmbedder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashingEmbedder(8).EmbedQuery(ctx, "anything")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestExtractiveGenerator(t *testing.T) {
	passages := []models.Passage{
		{ID: "p1", Text: "Freedonia has many rivers. Its flag is green."},
		{ID: "p2", Text: "History is long. The capital of Freedonia is Sylvania. It is old."},
	}
	g := ExtractiveGenerator{}

	answer, err := g.Answer(context.Background(), "What is the capital of Freedonia?", passages)
	require.NoError(t, err)
	assert.Equal(t, "The capital of Freedonia is Sylvania.", answer.Text)
	assert.True(t, answer.Attributed)
	assert.Equal(t, []string{"p2"}, answer.UsedPassageIDs)

	answer, err = g.Answer(context.Background(), "Who won the 1998 cup?", passages)
	require.NoError(t, err)
	assert.Equal(t, NotFoundAnswer, answer.Text)
	assert.True(t, answer.Attributed)
	assert.Empty(t, answer.UsedPassageIDs)
}
