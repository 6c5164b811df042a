package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/llm"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

// Invoker is the subset of the Bedrock runtime client used here
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Classifier implements core.Classifier using Amazon Bedrock
type Classifier struct {
	client   Invoker
	settings llm.Settings
	text     *utils.TextProcessor
	logger   *zap.Logger
}

// NewClassifier creates a new Bedrock-backed classifier. settings.Model is the Bedrock model ID.
func NewClassifier(client Invoker, settings llm.Settings, text *utils.TextProcessor, logger *zap.Logger) *Classifier {
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

	payload, err := c.requestPayload(prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.settings.Model),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	text, err := c.responseText(resp.Body)
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

// requestPayload builds the body expected by the model family
func (c *Classifier) requestPayload(prompt string) ([]byte, error) {
	switch {
	case c.isAnthropicModel():
		return json.Marshal(map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"system":            llm.SystemPrompt,
			"max_tokens":        c.settings.MaxTokens,
			"temperature":       c.settings.Temperature,
			"top_p":             c.settings.TopP,
			"messages": []map[string]interface{}{
				{"role": "user", "content": prompt},
			},
		})
	case c.isAmazonTitanModel():
		return json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.settings.MaxTokens,
				"temperature":   c.settings.Temperature,
				"topP":          c.settings.TopP,
			},
		})
	default:
		return json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.settings.MaxTokens,
			"temperature": c.settings.Temperature,
			"top_p":       c.settings.TopP,
		})
	}
}

// responseText extracts the generated text from the model family's response body
func (c *Classifier) responseText(body []byte) (string, error) {
	switch {
	case c.isAnthropicModel():
		var claudeResp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		var sb strings.Builder
		for _, block := range claudeResp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", fmt.Errorf("empty response from Claude model")
		}
		return sb.String(), nil
	case c.isAmazonTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	default:
		var genericResp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		switch {
		case genericResp.Output != "":
			return genericResp.Output, nil
		case genericResp.Text != "":
			return genericResp.Text, nil
		case genericResp.Response != "":
			return genericResp.Response, nil
		}
		return string(body), nil
	}
}

func (c *Classifier) isAnthropicModel() bool {
	return strings.Contains(c.settings.Model, "anthropic.claude")
}

func (c *Classifier) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.settings.Model, "amazon.titan")
}
