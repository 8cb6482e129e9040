package factory

import (
	"fmt"

	"github.com/supamail/supamail-gateway/internal/adapters/bedrock"
	"github.com/supamail/supamail-gateway/internal/adapters/gemini"
	"github.com/supamail/supamail-gateway/internal/adapters/openai"
	"github.com/supamail/supamail-gateway/internal/config"
	"github.com/supamail/supamail-gateway/internal/core"
	"github.com/supamail/supamail-gateway/internal/utils"
	"go.uber.org/zap"
)

// ClassifierFactory creates LLM classifiers
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

// CreateClassifier creates a classifier based on the configured provider,
// wrapped so classification failures degrade to fallback values instead of
// failing the pipeline.
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	llmConfig := f.cfg.GetLLM()

	var (
		inner core.Classifier
		err   error
	)
	switch llmConfig.Provider {
	case "bedrock":
		inner, err = bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "gemini":
		inner, err = gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	case "openai":
		inner, err = openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, err
	}

	return core.NewFallbackClassifier(inner, f.logger, llmConfig.FallbackSummary, llmConfig.FallbackCategory), nil
}
