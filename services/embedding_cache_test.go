package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	queries int
	docs    int
	err     error
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.docs++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i)}
	}
	return out, c.err
}

func (c *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	c.queries++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCachedEmbedder_CachesQueries(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, time.Minute)
	ctx := context.Background()

	first, err := c.EmbedQuery(ctx, "capital?")
	require.NoError(t, err)
	second, err := c.EmbedQuery(ctx, "capital?")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.queries)

	_, err = c.EmbedQuery(ctx, "river?")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.queries)

	c.Flush()
	_, err = c.EmbedQuery(ctx, "capital?")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.queries)
}

func TestCachedEmbedder_DocumentsPassThrough(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, time.Minute)

	_, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	_, err = c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.docs)
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("quota")}
	c := NewCachedEmbedder(inner, time.Minute)

	_, err := c.EmbedQuery(context.Background(), "q")
	assert.Error(t, err)
	inner.err = nil
	_, err = c.EmbedQuery(context.Background(), "q")
	assert.NoError(t, err)
	assert.Equal(t, 2, inner.queries)
}
