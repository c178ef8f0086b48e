package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/repositories"
)

// BatchResult tallies a usage batch. A failed field never aborts the
// rest of the batch.
type BatchResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// UsageService records which values a user actually submits so they can
// be offered back as suggestions.
type UsageService interface {
	// RecordBatch upserts a usage row for every non-blank field in one
	// form-step submission and feeds each recorded value to the pattern
	// learner together with its sibling values. Blank values are
	// silently skipped. Upserts are independent statements, not one
	// transaction: counters are advisory, a partial batch is acceptable.
	RecordBatch(ctx context.Context, userID uuid.UUID, fields []models.FieldUsage) BatchResult
}

type usageService struct {
	suggestions repositories.SuggestionRepository
	learner     LearnerService
	logger      *zap.Logger
}

// NewUsageService creates a UsageService.
func NewUsageService(suggestions repositories.SuggestionRepository, learner LearnerService, logger *zap.Logger) UsageService {
	return &usageService{
		suggestions: suggestions,
		learner:     learner,
		logger:      logger,
	}
}

func (s *usageService) RecordBatch(ctx context.Context, userID uuid.UUID, fields []models.FieldUsage) BatchResult {
	// Group sibling values by category so the learner sees everything
	// submitted in the same step.
	byCategory := make(map[string]map[string]string)
	for _, f := range fields {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}
		if byCategory[f.Category] == nil {
			byCategory[f.Category] = make(map[string]string)
		}
		byCategory[f.Category][f.FieldName] = value
	}

	var result BatchResult
	for _, f := range fields {
		value := strings.TrimSpace(f.Value)
		if value == "" {
			continue
		}

		suggestion, err := s.suggestions.UpsertUsage(ctx, userID, f.Category, f.FieldName, value)
		if err != nil {
			s.logger.Warn("Failed to upsert suggestion usage",
				zap.String("category", f.Category),
				zap.String("field", f.FieldName),
				zap.Error(err))
			result.Errors++
			continue
		}
		result.Processed++

		patterns := s.learner.Learn(ctx, userID, f.Category, f.FieldName, value, byCategory[f.Category])
		s.logger.Debug("Recorded field usage",
			zap.String("category", f.Category),
			zap.String("field", f.FieldName),
			zap.Int("usage_count", suggestion.UsageCount),
			zap.Int("patterns_written", patterns))
	}

	return result
}
