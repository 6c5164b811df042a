package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/whitelist"
)

// SpamLabeler sets the spam fields of documents before they are indexed
type SpamLabeler struct {
	classifier Classifier
	trusted    *whitelist.Checker
	logger     *zap.Logger
	threshold  float64
}

// NewSpamLabeler creates a new spam labeler
func NewSpamLabeler(
	classifier Classifier,
	trusted *whitelist.Checker,
	logger *zap.Logger,
	threshold float64,
) *SpamLabeler {
	return &SpamLabeler{
		classifier: classifier,
		trusted:    trusted,
		logger:     logger,
		threshold:  threshold,
	}
}

// Label classifies doc and records the verdict on it. On error doc is left unlabeled.
func (s *SpamLabeler) Label(ctx context.Context, doc *EmailDocument) error {
	// Trusted senders never reach the model
	if s.trusted != nil && s.trusted.IsWhitelisted(doc.Sender) {
		s.logger.Debug("Skipping classification for trusted sender",
			zap.String("sender", doc.Sender),
			zap.String("action", "whitelist_bypass"))
		s.apply(doc, &SpamVerdict{
			IsSpam:      false,
			Score:       0.0,
			Confidence:  1.0,
			Explanation: "Sender domain is trusted",
			AnalyzedAt:  time.Now(),
			ModelUsed:   "whitelist",
		})
		return nil
	}

	verdict, err := s.classifier.Classify(ctx, doc)
	if err != nil {
		return err
	}
	s.apply(doc, verdict)

	s.logger.Debug("Document classified",
		zap.String("subject", doc.Subject),
		zap.Bool("spam", *doc.Spam),
		zap.Float64("score", verdict.Score),
		zap.String("model", verdict.ModelUsed))
	return nil
}

// IsSpam applies the threshold to a verdict
func (s *SpamLabeler) IsSpam(verdict *SpamVerdict) bool {
	return verdict.Score >= s.threshold
}

func (s *SpamLabeler) apply(doc *EmailDocument, verdict *SpamVerdict) {
	spam := s.IsSpam(verdict)
	score := verdict.Score
	doc.Spam = &spam
	doc.SpamScore = &score
}
