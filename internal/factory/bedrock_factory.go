package factory

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/adapters/bedrock"
	"github.com/mikey/mailindex/internal/adapters/llm"
	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

// BedrockFactory creates Bedrock classifiers
type BedrockFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewBedrockFactory creates a new Bedrock factory
func NewBedrockFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *BedrockFactory {
	return &BedrockFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a Bedrock classifier using the default AWS credential chain
func (f *BedrockFactory) CreateClassifier(ctx context.Context) (core.Classifier, error) {
	bedrockCfg := f.cfg.GetBedrock()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(bedrockCfg.Region),
	)
	if err != nil {
		return nil, wrapProvider("bedrock", err)
	}

	return bedrock.NewClassifier(
		bedrockruntime.NewFromConfig(awsCfg),
		llm.Settings{
			Model:       bedrockCfg.ModelID,
			MaxTokens:   bedrockCfg.MaxTokens,
			Temperature: bedrockCfg.Temperature,
			TopP:        bedrockCfg.TopP,
			MaxBodySize: bedrockCfg.MaxBodySize,
		},
		f.textProcessor,
		f.logger,
	), nil
}
