package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
	"github.com/mikey/mailindex/internal/whitelist"
)

// ClassifierFactory creates the optional spam classification stage
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates the classifier for the configured provider.
// It returns nil when classification is disabled.
func (f *ClassifierFactory) CreateClassifier(ctx context.Context) (core.Classifier, error) {
	provider := f.cfg.GetClassifier().Provider

	switch provider {
	case "", "none":
		return nil, nil
	case "bedrock":
		return NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier(ctx)
	case "gemini":
		return NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier(ctx)
	case "openai":
		return NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	default:
		return nil, core.Errorf(core.ErrConfig, "creating classifier", "unsupported classifier provider: %s", provider)
	}
}

// CreateSpamLabeler wraps classifier with the trusted-domain bypass and threshold.
// A nil classifier yields a nil labeler.
func (f *ClassifierFactory) CreateSpamLabeler(classifier core.Classifier) *core.SpamLabeler {
	if classifier == nil {
		return nil
	}

	cfg := f.cfg.GetClassifier()
	if len(cfg.TrustedDomains) > 0 {
		f.logger.Info("Loaded trusted domains", zap.Strings("domains", cfg.TrustedDomains))
	}
	trusted := whitelist.NewChecker(cfg.TrustedDomains, f.logger)

	f.logger.Info("Spam classification enabled",
		zap.String("provider", cfg.Provider),
		zap.Float64("threshold", cfg.Threshold))
	return core.NewSpamLabeler(classifier, trusted, f.logger, cfg.Threshold)
}

func wrapProvider(provider string, err error) error {
	return core.Wrap(core.ErrConfig, fmt.Sprintf("creating %s classifier", provider), err)
}
