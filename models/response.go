package models

type UploadResponse struct {
	Message  string `json:"message"`
	Source   string `json:"source"`
	Pages    int    `json:"pages"`
	Passages int    `json:"passages"`
}

type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Pages   []int    `json:"pages,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
