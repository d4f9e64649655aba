package services

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedEmbedder remembers query vectors so repeated questions skip the
// provider. Document embeddings are never cached.
type CachedEmbedder struct {
	next  Embedder
	cache *cache.Cache
}

func NewCachedEmbedder(next Embedder, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedDocuments(ctx, texts)
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := c.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		c.cache.Set(text, vec, cache.DefaultExpiration)
	}
	return vec, nil
}

// Flush drops all cached query vectors.
func (c *CachedEmbedder) Flush() {
	c.cache.Flush()
}
