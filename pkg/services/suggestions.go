package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/repositories"
)

// SuggestionService manages a user's own saved suggestions.
type SuggestionService interface {
	// TogglePin flips the pin state of a suggestion and returns the new
	// state. Pinning fails with apperrors.ErrPinLimitExceeded once the
	// field already holds the maximum number of pins.
	TogglePin(ctx context.Context, userID, suggestionID uuid.UUID) (bool, error)
	// Edit replaces the suggestion's text. Learned patterns that
	// reference the old text are left alone.
	Edit(ctx context.Context, userID, suggestionID uuid.UUID, text string) (*models.UserSuggestion, error)
	// Delete removes the suggestion. Learned patterns survive, so a
	// recreated suggestion keeps its contextual standing.
	Delete(ctx context.Context, userID, suggestionID uuid.UUID) error
}

type suggestionService struct {
	suggestions repositories.SuggestionRepository
	logger      *zap.Logger
}

// NewSuggestionService creates a SuggestionService.
func NewSuggestionService(suggestions repositories.SuggestionRepository, logger *zap.Logger) SuggestionService {
	return &suggestionService{suggestions: suggestions, logger: logger}
}

func (s *suggestionService) TogglePin(ctx context.Context, userID, suggestionID uuid.UUID) (bool, error) {
	current, err := s.suggestions.GetByIDForUser(ctx, suggestionID, userID)
	if err != nil {
		return false, err
	}

	next := !current.IsPinned
	if next {
		pinned, err := s.suggestions.CountPinned(ctx, userID, current.Category, current.FieldName)
		if err != nil {
			return false, fmt.Errorf("failed to count pinned suggestions: %w", err)
		}
		if pinned >= models.MaxPinsPerField {
			return false, apperrors.ErrPinLimitExceeded
		}
	}

	if err := s.suggestions.SetPinned(ctx, suggestionID, userID, next); err != nil {
		return false, err
	}

	s.logger.Debug("Toggled suggestion pin",
		zap.String("suggestion_id", suggestionID.String()),
		zap.Bool("pinned", next))
	return next, nil
}

func (s *suggestionService) Edit(ctx context.Context, userID, suggestionID uuid.UUID, text string) (*models.UserSuggestion, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("suggestion text cannot be empty")
	}
	return s.suggestions.UpdateText(ctx, suggestionID, userID, trimmed)
}

func (s *suggestionService) Delete(ctx context.Context, userID, suggestionID uuid.UUID) error {
	return s.suggestions.Delete(ctx, suggestionID, userID)
}
