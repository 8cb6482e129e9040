package core

import (
	"context"

	"go.uber.org/zap"
)

// FallbackClassifier wraps a raw classifier and absorbs every failure,
// returning a fixed summary/category pair instead. The pipeline never
// stalls on classification: a timeout, quota error or malformed LLM
// response degrades to the fallback pair, and the fallback category is an
// ordinary label that category rules can still match.
type FallbackClassifier struct {
	inner    Classifier
	logger   *zap.Logger
	summary  string
	category string
}

// NewFallbackClassifier creates a fallback-wrapped classifier.
func NewFallbackClassifier(inner Classifier, logger *zap.Logger, fallbackSummary, fallbackCategory string) *FallbackClassifier {
	return &FallbackClassifier{
		inner:    inner,
		logger:   logger,
		summary:  fallbackSummary,
		category: fallbackCategory,
	}
}

// Classify never returns an error. On inner failure the fallback pair is
// returned with the subject prefixed "[AI]"; on success the enhanced
// subject is "[<summary>] <subject>".
func (c *FallbackClassifier) Classify(ctx context.Context, subject, body string) (*Classification, error) {
	cls, err := c.inner.Classify(ctx, subject, body)
	if err != nil {
		c.logger.Warn("Classification failed, using fallback",
			zap.String("subject", subject),
			zap.Error(err))
		return &Classification{
			Summary:         c.summary,
			Category:        c.category,
			EnhancedSubject: "[AI] " + subject,
		}, nil
	}

	if cls.Summary == "" {
		cls.Summary = c.summary
	}
	if cls.Category == "" {
		cls.Category = c.category
	}
	if cls.EnhancedSubject == "" {
		cls.EnhancedSubject = "[" + cls.Summary + "] " + subject
	}
	return cls, nil
}

// Close releases the wrapped classifier's resources, if it holds any
func (c *FallbackClassifier) Close() error {
	if closer, ok := c.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
