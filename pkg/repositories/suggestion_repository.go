package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/database"
	"github.com/otscribe/report-engine/pkg/models"
)

// SuggestionRepository provides data access for per-user suggestion rows.
// Every query is filtered by the owning user id; a row owned by another
// user is reported as apperrors.ErrNotFound, same as a missing row.
type SuggestionRepository interface {
	// UpsertUsage increments the usage count for an existing
	// (user, category, field, text) row or creates it with count 1.
	// The upsert is a single conditional statement so concurrent
	// submissions of the same value cannot lose increments.
	UpsertUsage(ctx context.Context, userID uuid.UUID, category, fieldName, text string) (*models.UserSuggestion, error)

	// ListByField returns a user's candidates for one field with at
	// least minUsage uses, pinned first then by usage count.
	ListByField(ctx context.Context, userID uuid.UUID, category, fieldName string, minUsage int) ([]*models.UserSuggestion, error)

	// ListPinned returns up to limit pinned rows for one field, by
	// usage count.
	ListPinned(ctx context.Context, userID uuid.UUID, category, fieldName string, limit int) ([]*models.UserSuggestion, error)

	CountPinned(ctx context.Context, userID uuid.UUID, category, fieldName string) (int, error)
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.UserSuggestion, error)
	UpdateText(ctx context.Context, id, userID uuid.UUID, text string) (*models.UserSuggestion, error)
	SetPinned(ctx context.Context, id, userID uuid.UUID, pinned bool) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type suggestionRepository struct {
	db *database.DB
}

// NewSuggestionRepository creates a new SuggestionRepository.
func NewSuggestionRepository(db *database.DB) SuggestionRepository {
	return &suggestionRepository{db: db}
}

var _ SuggestionRepository = (*suggestionRepository)(nil)

const suggestionColumns = `id, user_id, category, field_name, suggestion_text, usage_count, is_pinned, last_used, created_at`

func (r *suggestionRepository) UpsertUsage(ctx context.Context, userID uuid.UUID, category, fieldName, text string) (*models.UserSuggestion, error) {
	query := `
		INSERT INTO user_suggestions (id, user_id, category, field_name, suggestion_text, usage_count, is_pinned, last_used, created_at)
		VALUES ($1, $2, $3, $4, $5, 1, false, now(), now())
		ON CONFLICT (user_id, category, field_name, suggestion_text)
		DO UPDATE SET usage_count = user_suggestions.usage_count + 1,
		              last_used = now()
		RETURNING ` + suggestionColumns

	row := r.db.QueryRow(ctx, query, uuid.New(), userID, category, fieldName, text)
	s, err := scanSuggestion(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert suggestion usage: %w", err)
	}

	return s, nil
}

func (r *suggestionRepository) ListByField(ctx context.Context, userID uuid.UUID, category, fieldName string, minUsage int) ([]*models.UserSuggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM user_suggestions
		WHERE user_id = $1 AND category = $2 AND field_name = $3 AND usage_count >= $4
		ORDER BY is_pinned DESC, usage_count DESC`

	rows, err := r.db.Query(ctx, query, userID, category, fieldName, minUsage)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	return collectSuggestions(rows)
}

func (r *suggestionRepository) ListPinned(ctx context.Context, userID uuid.UUID, category, fieldName string, limit int) ([]*models.UserSuggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM user_suggestions
		WHERE user_id = $1 AND category = $2 AND field_name = $3 AND is_pinned
		ORDER BY usage_count DESC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, userID, category, fieldName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pinned suggestions: %w", err)
	}
	defer rows.Close()

	return collectSuggestions(rows)
}

func (r *suggestionRepository) CountPinned(ctx context.Context, userID uuid.UUID, category, fieldName string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM user_suggestions
		WHERE user_id = $1 AND category = $2 AND field_name = $3 AND is_pinned`

	var count int
	if err := r.db.QueryRow(ctx, query, userID, category, fieldName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pinned suggestions: %w", err)
	}

	return count, nil
}

func (r *suggestionRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.UserSuggestion, error) {
	query := `
		SELECT ` + suggestionColumns + `
		FROM user_suggestions
		WHERE id = $1 AND user_id = $2`

	s, err := scanSuggestion(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}

	return s, nil
}

func (r *suggestionRepository) UpdateText(ctx context.Context, id, userID uuid.UUID, text string) (*models.UserSuggestion, error) {
	query := `
		UPDATE user_suggestions
		SET suggestion_text = $3
		WHERE id = $1 AND user_id = $2
		RETURNING ` + suggestionColumns

	s, err := scanSuggestion(r.db.QueryRow(ctx, query, id, userID, text))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update suggestion text: %w", err)
	}

	return s, nil
}

func (r *suggestionRepository) SetPinned(ctx context.Context, id, userID uuid.UUID, pinned bool) error {
	query := `
		UPDATE user_suggestions
		SET is_pinned = $3
		WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(ctx, query, id, userID, pinned)
	if err != nil {
		return fmt.Errorf("failed to set pinned flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *suggestionRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM user_suggestions WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete suggestion: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanSuggestion(row pgx.Row) (*models.UserSuggestion, error) {
	var s models.UserSuggestion
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Category,
		&s.FieldName,
		&s.SuggestionText,
		&s.UsageCount,
		&s.IsPinned,
		&s.LastUsed,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSuggestions(rows pgx.Rows) ([]*models.UserSuggestion, error) {
	var suggestions []*models.UserSuggestion
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestions = append(suggestions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}

	return suggestions, nil
}
