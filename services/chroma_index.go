package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github/itish2003/pdfchat/models"
)

const (
	metaGeneration = "generation"
	metaPassageID  = "passage_id"
	metaOrdinal    = "ordinal"
	metaSource     = "source"
	metaPage       = "page"

	// generations kept in the collection; older ones are deleted on build
	retainedGenerations = 2

	// candidates requested from the collection per wanted passage
	candidateFactor = 3
)

// OpenChromaCollection gets or creates the collection that mirrors the
// active document. The collection uses cosine distance so its candidates
// agree with the local scoring.
func OpenChromaCollection(ctx context.Context, client chromago.Client, name string, logger *zap.Logger) (chromago.Collection, error) {
	logger.Info("opening chroma collection", zap.String("collection", name))
	collection, err := client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "pdfchat passages"),
				chromago.NewStringAttribute("created_by", "pdfchat"),
			),
		),
		chromago.WithHNSWSpaceCreate(embeddings.COSINE),
	)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %q: %w", name, err)
	}
	return collection, nil
}

// ChromaIndexBuilder writes every build to a Chroma collection under a fresh
// generation tag.
type ChromaIndexBuilder struct {
	collection chromago.Collection
	logger     *zap.Logger

	mu          sync.Mutex
	generations []string
}

func NewChromaIndexBuilder(collection chromago.Collection, logger *zap.Logger) *ChromaIndexBuilder {
	return &ChromaIndexBuilder{collection: collection, logger: logger}
}

func (b *ChromaIndexBuilder) Build(ctx context.Context, passages []models.Passage) (VectorIndex, error) {
	local, err := NewMemoryIndex(passages)
	if err != nil {
		return nil, err
	}

	generation := uuid.NewString()
	ids := make([]chromago.DocumentID, 0, len(passages))
	texts := make([]string, 0, len(passages))
	vectors := make([]embeddings.Embedding, 0, len(passages))
	metadatas := make([]chromago.DocumentMetadata, 0, len(passages))
	for _, p := range local.passages {
		ids = append(ids, chromago.DocumentID(generation+"-"+p.ID))
		texts = append(texts, p.Text)
		vectors = append(vectors, embeddings.NewEmbeddingFromFloat32(p.Vector))
		metadatas = append(metadatas, chromago.NewDocumentMetadata(
			chromago.NewStringAttribute(metaGeneration, generation),
			chromago.NewStringAttribute(metaPassageID, p.ID),
			chromago.NewIntAttribute(metaOrdinal, int64(p.Ordinal)),
			chromago.NewStringAttribute(metaSource, p.SourceLabel),
			chromago.NewIntAttribute(metaPage, int64(p.Page)),
		))
	}

	err = b.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(vectors...),
		chromago.WithMetadatas(metadatas...),
	)
	if err != nil {
		b.deleteGeneration(ctx, generation)
		return nil, fmt.Errorf("add %d passages to chromadb: %w", len(ids), err)
	}
	b.logger.Debug("chroma generation written",
		zap.String("generation", generation), zap.Int("passages", len(ids)))

	b.retire(ctx, generation)
	return &ChromaIndex{collection: b.collection, generation: generation, local: local, logger: b.logger}, nil
}

func (b *ChromaIndexBuilder) retire(ctx context.Context, generation string) {
	b.mu.Lock()
	b.generations = append(b.generations, generation)
	var stale []string
	if n := len(b.generations) - retainedGenerations; n > 0 {
		stale = append(stale, b.generations[:n]...)
		b.generations = b.generations[n:]
	}
	b.mu.Unlock()

	for _, g := range stale {
		b.deleteGeneration(ctx, g)
	}
}

func (b *ChromaIndexBuilder) deleteGeneration(ctx context.Context, generation string) {
	where := chromago.EqString(metaGeneration, generation)
	if err := b.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		b.logger.Warn("failed to delete chroma generation", zap.String("generation", generation), zap.Error(err))
	}
}

// ChromaIndex asks Chroma for the nearest passages of its own generation and
// re-scores those candidates against the local copy, so scores and tie
// order match MemoryIndex. When the collection fails or cannot supply enough
// candidates the local copy answers on its own.
type ChromaIndex struct {
	collection chromago.Collection
	generation string
	local      *MemoryIndex
	logger     *zap.Logger
}

func (c *ChromaIndex) Retrieve(ctx context.Context, query []float32, k int) ([]ScoredPassage, error) {
	if k <= 0 || len(query) != c.local.Dimensions() {
		return c.local.Retrieve(ctx, query, k)
	}
	want := min(k, c.local.Len())

	candidates, err := c.candidates(ctx, query, min(k*candidateFactor, c.local.Len()))
	if err != nil {
		c.logger.Warn("chroma query failed, using local index", zap.Error(err))
		return c.local.Retrieve(ctx, query, k)
	}
	if len(candidates) < want {
		c.logger.Debug("chroma returned too few candidates, using local index",
			zap.Int("candidates", len(candidates)), zap.Int("want", want))
		return c.local.Retrieve(ctx, query, k)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Ordinal < candidates[j].Ordinal })
	return rankPassages(query, candidates, k), nil
}

// candidates returns the passages of this generation nearest to query, as
// found by the collection.
func (c *ChromaIndex) candidates(ctx context.Context, query []float32, n int) ([]models.Passage, error) {
	results, err := c.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chromago.WithWhereQuery(chromago.EqString(metaGeneration, c.generation)),
		chromago.WithNResults(n),
		chromago.WithIncludeQuery(chromago.IncludeMetadatas),
	)
	if err != nil {
		return nil, fmt.Errorf("query chromadb: %w", err)
	}

	metadataGroups := results.GetMetadatasGroups()
	if len(metadataGroups) == 0 {
		return nil, nil
	}

	found := make([]models.Passage, 0, len(metadataGroups[0]))
	seen := make(map[string]bool)
	for _, meta := range metadataGroups[0] {
		if meta == nil {
			continue
		}
		if g, _ := meta.GetString(metaGeneration); g != c.generation {
			continue
		}
		id, _ := meta.GetString(metaPassageID)
		p, ok := c.local.byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		found = append(found, p)
	}
	return found, nil
}

func (c *ChromaIndex) Len() int        { return c.local.Len() }
func (c *ChromaIndex) Dimensions() int { return c.local.Dimensions() }
