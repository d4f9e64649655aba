package services

import "google.golang.org/genai"

// answerSchema constrains Gemini's reply to the JSON object parseAttributedAnswer reads.
func answerSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"answer": {
				Type:        genai.TypeString,
				Description: "The answer to the question, in the language of the question.",
			},
			"used_passages": {
				Type:        genai.TypeArray,
				Description: "Numbers of the context passages the answer is based on.",
				Items:       &genai.Schema{Type: genai.TypeInteger},
			},
		},
		Required: []string{"answer", "used_passages"},
	}
}

// safetySettings relaxes the filters that most often block answers quoting document text.
func safetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	}
}
