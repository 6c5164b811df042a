package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/gemini"
	"github.com/mikey/mailindex/internal/adapters/llm"
	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

// GeminiFactory creates Gemini classifiers
type GeminiFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiFactory creates a new Gemini factory
func NewGeminiFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *GeminiFactory {
	return &GeminiFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a Gemini classifier
func (f *GeminiFactory) CreateClassifier(ctx context.Context) (core.Classifier, error) {
	geminiCfg := f.cfg.GetGemini()

	if geminiCfg.APIKey == "" {
		return nil, wrapProvider("gemini", fmt.Errorf("gemini API key is required"))
	}

	classifier, err := gemini.NewClassifier(ctx, geminiCfg.APIKey, llm.Settings{
		Model:       geminiCfg.ModelName,
		MaxTokens:   geminiCfg.MaxTokens,
		Temperature: geminiCfg.Temperature,
		TopP:        geminiCfg.TopP,
		MaxBodySize: geminiCfg.MaxBodySize,
	}, f.textProcessor, f.logger)
	if err != nil {
		return nil, wrapProvider("gemini", err)
	}
	return classifier, nil
}
