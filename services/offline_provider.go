package services

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github/itish2003/pdfchat/models"
)

const defaultHashingDimensions = 256

var (
	tokenPattern    = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

	stopwords = map[string]struct{}{
		"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
		"did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {},
		"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
		"was": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "with": {},
	}
)

// HashingEmbedder maps word counts into a fixed number of buckets. It needs no
// network access and gives identical vectors for identical text, which makes
// it usable offline and in tests.
type HashingEmbedder struct {
	dimensions int
}

func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashingDimensions
	}
	return &HashingEmbedder{dimensions: dimensions}
}

func (e *HashingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, providerError("hashing embed", err)
		}
		vectors[i] = e.vector(t)
	}
	return vectors, nil
}

func (e *HashingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, providerError("hashing embed", err)
	}
	return e.vector(text), nil
}

func (e *HashingEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dimensions)
	for _, tok := range contentTokens(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(e.dimensions))] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

// contentTokens lowercases text and drops stopwords.
func contentTokens(text string) []string {
	var out []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// ExtractiveGenerator answers with the sentence from the passages that shares
// the most words with the question, quoted verbatim.
type ExtractiveGenerator struct{}

func (ExtractiveGenerator) Answer(ctx context.Context, question string, passages []models.Passage) (*models.GeneratedAnswer, error) {
	if err := ctx.Err(); err != nil {
		return nil, providerError("extractive answer", err)
	}

	wanted := make(map[string]struct{})
	for _, tok := range contentTokens(question) {
		wanted[tok] = struct{}{}
	}

	var (
		best      string
		bestScore int
		bestID    string
	)
	for _, p := range passages {
		for _, sentence := range sentencePattern.FindAllString(p.Text, -1) {
			score := 0
			seen := make(map[string]struct{})
			for _, tok := range contentTokens(sentence) {
				if _, ok := wanted[tok]; !ok {
					continue
				}
				if _, dup := seen[tok]; dup {
					continue
				}
				seen[tok] = struct{}{}
				score++
			}
			if score > bestScore {
				best, bestScore, bestID = strings.TrimSpace(sentence), score, p.ID
			}
		}
	}

	if bestScore == 0 {
		return &models.GeneratedAnswer{Text: NotFoundAnswer, Attributed: true}, nil
	}
	return &models.GeneratedAnswer{Text: best, UsedPassageIDs: []string{bestID}, Attributed: true}, nil
}
