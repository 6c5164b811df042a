package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/mailindex/internal/adapters/llm"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

// Classifier implements core.Classifier using Google Gemini
type Classifier struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	settings llm.Settings
	text     *utils.TextProcessor
	logger   *zap.Logger
}

// NewClassifier creates a Gemini client for apiKey and the configured model
func NewClassifier(ctx context.Context, apiKey string, settings llm.Settings, text *utils.TextProcessor, logger *zap.Logger) (*Classifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(settings.Model)
	model.SetTemperature(settings.Temperature)
	model.SetTopP(settings.TopP)
	model.SetMaxOutputTokens(int32(settings.MaxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(llm.SystemPrompt))

	return &Classifier{
		client:   client,
		model:    model,
		settings: settings,
		text:     text,
		logger:   logger,
	}, nil
}

// Close closes the Gemini client
func (c *Classifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Classify asks the model whether doc is spam
func (c *Classifier) Classify(ctx context.Context, doc *core.EmailDocument) (*core.SpamVerdict, error) {
	prompt := llm.BuildPrompt(doc, c.text, c.settings.MaxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	verdict, err := llm.ParseVerdict(text, c.settings.Model)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Classified message",
		zap.String("subject", doc.Subject),
		zap.Float64("score", verdict.Score))
	return verdict, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return sb.String(), nil
}
