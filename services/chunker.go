package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github/itish2003/pdfchat/config"
	"github/itish2003/pdfchat/models"
)

// Chunker splits page texts into ordered passages.
type Chunker interface {
	Split(pages []models.Page) ([]models.Chunk, error)
}

// NewChunker returns the chunker for a strategy. overlap must be smaller than size.
func NewChunker(strategy string, size, overlap int) (Chunker, error) {
	if err := checkChunkParams(size, overlap); err != nil {
		return nil, err
	}
	switch strategy {
	case config.ChunkStrategyWindow, "":
		return &WindowChunker{size: size, overlap: overlap}, nil
	case config.ChunkStrategyRecursive:
		return &RecursiveChunker{
			splitter: textsplitter.NewRecursiveCharacter(
				textsplitter.WithChunkSize(size),
				textsplitter.WithChunkOverlap(overlap),
			),
		}, nil
	}
	return nil, fmt.Errorf("unknown chunk strategy: %s", strategy)
}

// WindowChunker cuts each page into fixed windows of code points. Consecutive
// windows on the same page share exactly overlap code points; windows never
// cross a page boundary.
type WindowChunker struct {
	size    int
	overlap int
}

func (c *WindowChunker) Split(pages []models.Page) ([]models.Chunk, error) {
	return SplitPages(pages, c.size, c.overlap)
}

// SplitPages applies the window strategy with explicit parameters.
func SplitPages(pages []models.Page, maxChunkChars, overlapChars int) ([]models.Chunk, error) {
	if err := checkChunkParams(maxChunkChars, overlapChars); err != nil {
		return nil, err
	}
	step := maxChunkChars - overlapChars

	var chunks []models.Chunk
	for _, page := range pages {
		runes := []rune(strings.TrimSpace(page.Text))
		for start := 0; start < len(runes); start += step {
			end := min(start+maxChunkChars, len(runes))
			text := string(runes[start:end])
			if strings.TrimSpace(text) != "" {
				chunks = append(chunks, models.Chunk{Page: page.Number, Text: text})
			}
			if end == len(runes) {
				break
			}
		}
	}
	return chunks, nil
}

// RecursiveChunker prefers paragraph, line and word boundaries. Chunks stay
// within the size limit but overlap only approximately.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func (c *RecursiveChunker) Split(pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		parts, err := c.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", page.Number, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{Page: page.Number, Text: part})
		}
	}
	return chunks, nil
}

func checkChunkParams(size, overlap int) error {
	if size <= 0 || overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: chunk size %d with overlap %d", ErrInvalidInput, size, overlap)
	}
	return nil
}
