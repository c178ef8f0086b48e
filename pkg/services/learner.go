package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/repositories"
)

// LearnerService mines contextual co-occurrence patterns from a single
// form-step submission. For a just-recorded target value it upserts one
// first-order pattern per sibling field, and when a sibling itself is
// strongly predicted by another sibling (first-order frequency above the
// configured threshold) it also records a composite second-order pattern
// under synthesized "fieldA→fieldB" keys. The composite step is capped
// at one hop; composites never seed further composites.
type LearnerService interface {
	// Learn records patterns for one (category, targetField, text)
	// against the sibling values submitted alongside it. Failures on
	// individual pairs are logged and skipped. Returns the number of
	// pattern rows written.
	Learn(ctx context.Context, userID uuid.UUID, category, targetField, text string, siblings map[string]string) int
}

type learnerService struct {
	patterns             repositories.PatternRepository
	secondOrderThreshold int
	logger               *zap.Logger
}

// NewLearnerService creates a LearnerService. secondOrderThreshold is
// the first-order frequency a supporting pattern must exceed before a
// composite pattern is recorded.
func NewLearnerService(patterns repositories.PatternRepository, secondOrderThreshold int, logger *zap.Logger) LearnerService {
	return &learnerService{
		patterns:             patterns,
		secondOrderThreshold: secondOrderThreshold,
		logger:               logger,
	}
}

func (s *learnerService) Learn(ctx context.Context, userID uuid.UUID, category, targetField, text string, siblings map[string]string) int {
	written := 0

	for contextField, contextValue := range siblings {
		trimmed := strings.TrimSpace(contextValue)
		if contextField == targetField || trimmed == "" {
			continue
		}

		_, err := s.patterns.Upsert(ctx, repositories.PatternKey{
			UserID:         userID,
			Category:       category,
			TargetField:    targetField,
			ContextField:   contextField,
			ContextValue:   trimmed,
			SuggestionText: text,
		})
		if err != nil {
			s.logger.Warn("Failed to record contextual pattern",
				zap.String("category", category),
				zap.String("target_field", targetField),
				zap.String("context_field", contextField),
				zap.Error(err))
			continue
		}
		written++

		written += s.learnComposites(ctx, userID, category, targetField, text, contextField, trimmed, siblings)
	}

	return written
}

// learnComposites records second-order patterns for one first-order
// context pair. A composite is written only when a chain exists: some
// other sibling strongly predicts the context field's value, so the
// chained pair may help predict the target.
func (s *learnerService) learnComposites(ctx context.Context, userID uuid.UUID, category, targetField, text, contextField, contextValue string, siblings map[string]string) int {
	written := 0

	for secondField, secondValue := range siblings {
		secondTrimmed := strings.TrimSpace(secondValue)
		if secondField == targetField || secondField == contextField || secondTrimmed == "" {
			continue
		}

		supporting, err := s.patterns.MaxFrequency(ctx, userID, category, contextField, secondField, secondTrimmed)
		if err != nil {
			s.logger.Warn("Failed to check supporting pattern frequency",
				zap.String("context_field", contextField),
				zap.String("second_field", secondField),
				zap.Error(err))
			continue
		}
		if supporting <= s.secondOrderThreshold {
			continue
		}

		_, err = s.patterns.Upsert(ctx, repositories.PatternKey{
			UserID:         userID,
			Category:       category,
			TargetField:    targetField,
			ContextField:   secondField + models.CompositeKeySeparator + contextField,
			ContextValue:   secondTrimmed + models.CompositeKeySeparator + contextValue,
			SuggestionText: text,
		})
		if err != nil {
			s.logger.Warn("Failed to record composite pattern",
				zap.String("target_field", targetField),
				zap.String("context_field", contextField),
				zap.String("second_field", secondField),
				zap.Error(err))
			continue
		}
		written++
	}

	return written
}
