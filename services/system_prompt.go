package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github/itish2003/pdfchat/models"
)

// NotFoundAnswer is what the model is told to say when the context does not
// contain the answer.
const NotFoundAnswer = "I couldn't find that information in the document."

const answerTemplate = `Answer the user's question based only on the following context:

{{.context}}

Question: {{.question}}

Provide a clear, concise answer in the same language as the question.
If the answer isn't in the context, say "` + NotFoundAnswer + `"

Reply with a JSON object with two fields: "answer", the answer text, and
"used_passages", the numbers of the context passages the answer is based on
(an empty list if none were used).`

var answerPrompt = prompts.NewPromptTemplate(answerTemplate, []string{"context", "question"})

// BuildAnswerPrompt renders the grounded-answer prompt for question. Passages
// are numbered from 1 in the order given.
func BuildAnswerPrompt(question string, passages []models.Passage) (string, error) {
	prompt, err := answerPrompt.Format(map[string]any{
		"context":  formatContext(passages),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("render answer prompt: %w", err)
	}
	return prompt, nil
}

func formatContext(passages []models.Passage) string {
	var sb strings.Builder
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] (%s, page %d)\n%s", i+1, p.SourceLabel, p.Page, p.Text)
	}
	return sb.String()
}

type attributedReply struct {
	Answer       string `json:"answer"`
	UsedPassages []int  `json:"used_passages"`
}

// parseAttributedAnswer reads the model's JSON reply. A reply that is not the
// expected JSON is returned as plain text without attribution.
func parseAttributedAnswer(raw string, passages []models.Passage) *models.GeneratedAnswer {
	text := strings.TrimSpace(raw)
	body := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(text, "```json"), "```"), "```"))

	var reply attributedReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil || strings.TrimSpace(reply.Answer) == "" {
		return &models.GeneratedAnswer{Text: text}
	}

	answer := &models.GeneratedAnswer{Text: strings.TrimSpace(reply.Answer), Attributed: true}
	seen := make(map[int]bool)
	for _, n := range reply.UsedPassages {
		if n < 1 || n > len(passages) || seen[n] {
			continue
		}
		seen[n] = true
		answer.UsedPassageIDs = append(answer.UsedPassageIDs, passages[n-1].ID)
	}
	return answer
}
