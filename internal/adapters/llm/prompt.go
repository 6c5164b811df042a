// Package llm holds the prompt and response handling shared by the
// LLM-backed spam classifiers.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

// SystemPrompt is sent as the system message where the API supports one
const SystemPrompt = "You are a spam detection system. Respond only with JSON."

const promptFormat = `You are a spam detection system. Analyze the following email and determine if it's spam.
Respond with a JSON object containing:
- is_spam: boolean (true if spam, false if not)
- score: number between 0 and 1 (higher means more likely to be spam)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation of why you think it's spam or not)

Email:
From: %s
Date: %s
Folder: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// Response is the JSON object the model is asked to produce
type Response struct {
	IsSpam      bool    `json:"is_spam"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// BuildPrompt renders the classification prompt for doc. The body is
// truncated to maxBodySize bytes and sanitized to valid UTF-8.
func BuildPrompt(doc *core.EmailDocument, text *utils.TextProcessor, maxBodySize int) string {
	body := text.ProcessText(doc.Content, maxBodySize)
	return fmt.Sprintf(promptFormat, doc.Sender, doc.Date, doc.Folder, doc.Subject, body)
}

// ParseVerdict decodes the model output. Models often wrap the object in
// prose or code fences, so the outermost {...} is used when the text is not
// plain JSON.
func ParseVerdict(responseText, model string) (*core.SpamVerdict, error) {
	var resp Response
	if err := json.Unmarshal([]byte(responseText), &resp); err != nil {
		start := strings.Index(responseText, "{")
		end := strings.LastIndex(responseText, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
		if err := json.Unmarshal([]byte(responseText[start:end+1]), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}

	return &core.SpamVerdict{
		IsSpam:      resp.IsSpam,
		Score:       clamp(resp.Score),
		Confidence:  clamp(resp.Confidence),
		Explanation: resp.Explanation,
		AnalyzedAt:  time.Now(),
		ModelUsed:   model,
	}, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Settings are the generation parameters shared by every provider
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}
