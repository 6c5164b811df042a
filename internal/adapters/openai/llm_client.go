package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/llm"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

// Classifier implements core.Classifier using the OpenAI chat completions API
type Classifier struct {
	client   *openai.Client
	settings llm.Settings
	text     *utils.TextProcessor
	logger   *zap.Logger
}

// NewClassifier creates a new OpenAI-backed classifier
func NewClassifier(client *openai.Client, settings llm.Settings, text *utils.TextProcessor, logger *zap.Logger) *Classifier {
	return &Classifier{
		client:   client,
		settings: settings,
		text:     text,
		logger:   logger,
	}
}

// Classify asks the model whether doc is spam
func (c *Classifier) Classify(ctx context.Context, doc *core.EmailDocument) (*core.SpamVerdict, error) {
	prompt := llm.BuildPrompt(doc, c.text, c.settings.MaxBodySize)

	req := openai.ChatCompletionRequest{
		Model: c.settings.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: llm.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.settings.MaxTokens,
		Temperature: c.settings.Temperature,
		TopP:        c.settings.TopP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	verdict, err := llm.ParseVerdict(resp.Choices[0].Message.Content, c.settings.Model)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Classified message",
		zap.String("subject", doc.Subject),
		zap.String("completion_id", resp.ID),
		zap.Float64("score", verdict.Score))
	return verdict, nil
}
