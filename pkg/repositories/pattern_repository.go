package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/otscribe/report-engine/pkg/database"
	"github.com/otscribe/report-engine/pkg/models"
)

// PatternKey identifies one contextual pattern row minus the frequency.
type PatternKey struct {
	UserID         uuid.UUID
	Category       string
	TargetField    string
	ContextField   string
	ContextValue   string
	SuggestionText string
}

// PatternRepository provides data access for contextual co-occurrence
// patterns. Rows are append-only from the engine's point of view:
// nothing ever deletes them, edits and deletions of suggestions leave
// historical patterns untouched.
type PatternRepository interface {
	// Upsert increments the frequency of an existing pattern row or
	// creates it with frequency 1. Returns the resulting frequency.
	Upsert(ctx context.Context, key PatternKey) (int, error)

	// Find returns the pattern for an exact key, or nil if none exists.
	Find(ctx context.Context, key PatternKey) (*models.ContextualPattern, error)

	// MaxFrequency returns the highest frequency among patterns
	// matching (user, category, target, contextField, contextValue)
	// across all suggestion texts, or 0 if none exist.
	MaxFrequency(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string) (int, error)

	// SumFrequency returns the total frequency across all suggestion
	// texts recorded for one (contextField, contextValue) pair. This is
	// the denominator of the empirical probability in the scorer.
	SumFrequency(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string) (int, error)

	// ListByContext returns up to limit patterns for one context pair,
	// most frequent first.
	ListByContext(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string, limit int) ([]*models.ContextualPattern, error)
}

type patternRepository struct {
	db *database.DB
}

// NewPatternRepository creates a new PatternRepository.
func NewPatternRepository(db *database.DB) PatternRepository {
	return &patternRepository{db: db}
}

var _ PatternRepository = (*patternRepository)(nil)

const patternColumns = `id, user_id, category, target_field, context_field, context_value, suggestion_text, frequency, created_at, updated_at`

func (r *patternRepository) Upsert(ctx context.Context, key PatternKey) (int, error) {
	query := `
		INSERT INTO contextual_patterns (id, user_id, category, target_field, context_field, context_value, suggestion_text, frequency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, now(), now())
		ON CONFLICT (user_id, category, target_field, context_field, context_value, suggestion_text)
		DO UPDATE SET frequency = contextual_patterns.frequency + 1,
		              updated_at = now()
		RETURNING frequency`

	var frequency int
	err := r.db.QueryRow(ctx, query,
		uuid.New(),
		key.UserID,
		key.Category,
		key.TargetField,
		key.ContextField,
		key.ContextValue,
		key.SuggestionText,
	).Scan(&frequency)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert contextual pattern: %w", err)
	}

	return frequency, nil
}

func (r *patternRepository) Find(ctx context.Context, key PatternKey) (*models.ContextualPattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM contextual_patterns
		WHERE user_id = $1 AND category = $2 AND target_field = $3
		  AND context_field = $4 AND context_value = $5 AND suggestion_text = $6`

	row := r.db.QueryRow(ctx, query,
		key.UserID, key.Category, key.TargetField,
		key.ContextField, key.ContextValue, key.SuggestionText)

	p, err := scanPattern(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Pattern not observed yet
		}
		return nil, fmt.Errorf("failed to find contextual pattern: %w", err)
	}

	return p, nil
}

func (r *patternRepository) MaxFrequency(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string) (int, error) {
	query := `
		SELECT COALESCE(MAX(frequency), 0)
		FROM contextual_patterns
		WHERE user_id = $1 AND category = $2 AND target_field = $3
		  AND context_field = $4 AND context_value = $5`

	var max int
	err := r.db.QueryRow(ctx, query, userID, category, targetField, contextField, contextValue).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to compute max pattern frequency: %w", err)
	}

	return max, nil
}

func (r *patternRepository) SumFrequency(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string) (int, error) {
	query := `
		SELECT COALESCE(SUM(frequency), 0)
		FROM contextual_patterns
		WHERE user_id = $1 AND category = $2 AND target_field = $3
		  AND context_field = $4 AND context_value = $5`

	var sum int
	err := r.db.QueryRow(ctx, query, userID, category, targetField, contextField, contextValue).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to compute total pattern frequency: %w", err)
	}

	return sum, nil
}

func (r *patternRepository) ListByContext(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string, limit int) ([]*models.ContextualPattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM contextual_patterns
		WHERE user_id = $1 AND category = $2 AND target_field = $3
		  AND context_field = $4 AND context_value = $5
		ORDER BY frequency DESC
		LIMIT $6`

	rows, err := r.db.Query(ctx, query, userID, category, targetField, contextField, contextValue, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query contextual patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*models.ContextualPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contextual pattern: %w", err)
		}
		patterns = append(patterns, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contextual patterns: %w", err)
	}

	return patterns, nil
}

func scanPattern(row pgx.Row) (*models.ContextualPattern, error) {
	var p models.ContextualPattern
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Category,
		&p.TargetField,
		&p.ContextField,
		&p.ContextValue,
		&p.SuggestionText,
		&p.Frequency,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
