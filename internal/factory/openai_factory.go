package factory

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/llm"
	openaiadapter "github.com/mikey/mailindex/internal/adapters/openai"
	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

// OpenAIFactory creates OpenAI classifiers
type OpenAIFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIFactory creates a new OpenAI factory
func NewOpenAIFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *OpenAIFactory {
	return &OpenAIFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates an OpenAI classifier
func (f *OpenAIFactory) CreateClassifier() (core.Classifier, error) {
	openaiCfg := f.cfg.GetOpenAI()
	if openaiCfg.APIKey == "" {
		return nil, wrapProvider("openai", fmt.Errorf("openai API key is required"))
	}

	return openaiadapter.NewClassifier(
		openai.NewClient(openaiCfg.APIKey),
		llm.Settings{
			Model:       openaiCfg.ModelName,
			MaxTokens:   openaiCfg.MaxTokens,
			Temperature: openaiCfg.Temperature,
			TopP:        openaiCfg.TopP,
			MaxBodySize: openaiCfg.MaxBodySize,
		},
		f.textProcessor,
		f.logger,
	), nil
}
