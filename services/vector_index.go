package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github/itish2003/pdfchat/models"
)

// VectorIndex is an immutable set of embedded passages. Implementations must be
// safe for concurrent Retrieve calls.
type VectorIndex interface {
	Retrieve(ctx context.Context, query []float32, k int) ([]ScoredPassage, error)
	Len() int
	Dimensions() int
}

// IndexBuilder creates a new index from embedded passages. The result is not
// visible to anyone until the caller commits it.
type IndexBuilder interface {
	Build(ctx context.Context, passages []models.Passage) (VectorIndex, error)
}

// ScoredPassage is a retrieval hit.
type ScoredPassage struct {
	Passage models.Passage
	Score   float64
}

// MemoryIndexBuilder builds brute-force in-memory indexes.
type MemoryIndexBuilder struct{}

func (MemoryIndexBuilder) Build(_ context.Context, passages []models.Passage) (VectorIndex, error) {
	return NewMemoryIndex(passages)
}

// MemoryIndex ranks passages by exact cosine similarity.
type MemoryIndex struct {
	dimensions int
	passages   []models.Passage
	byID       map[string]models.Passage
}

// NewMemoryIndex copies the passages and their vectors. All vectors must have
// the same non-zero length.
func NewMemoryIndex(passages []models.Passage) (*MemoryIndex, error) {
	if len(passages) == 0 {
		return nil, ErrEmptyIndex
	}
	dims := len(passages[0].Vector)
	if dims == 0 {
		return nil, fmt.Errorf("%w: passage %s has an empty vector", ErrProvider, passages[0].ID)
	}

	stored := make([]models.Passage, len(passages))
	byID := make(map[string]models.Passage, len(passages))
	for i, p := range passages {
		if len(p.Vector) != dims {
			return nil, fmt.Errorf("%w: vector dimension mismatch: passage %s has %d, expected %d",
				ErrProvider, p.ID, len(p.Vector), dims)
		}
		vec := make([]float32, dims)
		copy(vec, p.Vector)
		p.Vector = vec
		stored[i] = p
		byID[p.ID] = p
	}
	return &MemoryIndex{dimensions: dims, passages: stored, byID: byID}, nil
}

// Retrieve returns up to k passages by descending cosine similarity. Equal
// scores keep insertion order.
func (m *MemoryIndex) Retrieve(_ context.Context, query []float32, k int) ([]ScoredPassage, error) {
	if m == nil || len(m.passages) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, k)
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query dimension mismatch: got %d, expected %d", ErrProvider, len(query), m.dimensions)
	}
	return rankPassages(query, m.passages, k), nil
}

func (m *MemoryIndex) Len() int {
	if m == nil {
		return 0
	}
	return len(m.passages)
}

func (m *MemoryIndex) Dimensions() int {
	if m == nil {
		return 0
	}
	return m.dimensions
}

// rankPassages scores passages against query and keeps the best k. Hits carry
// no vector so callers cannot reach the stored copies.
func rankPassages(query []float32, passages []models.Passage, k int) []ScoredPassage {
	scored := make([]ScoredPassage, len(passages))
	for i, p := range passages {
		scored[i] = ScoredPassage{Passage: p, Score: CosineSimilarity(query, p.Vector)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	hits := scored[:k]
	for i := range hits {
		hits[i].Passage.Vector = nil
	}
	return hits
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
