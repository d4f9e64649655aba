package models

import "time"

// Page is the text of a single PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded slice of a page's text, before it is embedded.
type Chunk struct {
	Page int
	Text string
}

// Passage is an embedded chunk of the active document. Passages are never
// mutated after they are built.
type Passage struct {
	ID          string    `json:"id"`
	Ordinal     int       `json:"ordinal"`
	Text        string    `json:"text"`
	SourceLabel string    `json:"source"`
	Page        int       `json:"page"`
	Vector      []float32 `json:"-"`
}

// GeneratedAnswer is what an answer generator returns for one question.
// Attributed is false when the generator could not report which passages it used.
type GeneratedAnswer struct {
	Text           string
	UsedPassageIDs []string
	Attributed     bool
}

// ChatAnswer is the result of a chat question against the active document.
type ChatAnswer struct {
	Text    string
	Sources []string
	Pages   []int
}

// DocumentInfo describes the active session without exposing its index.
type DocumentInfo struct {
	SessionID string    `json:"id"`
	Source    string    `json:"source"`
	Pages     int       `json:"pages"`
	Passages  int       `json:"passages"`
	CreatedAt time.Time `json:"created_at"`
}
