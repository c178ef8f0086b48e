package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/database"
	"github.com/otscribe/report-engine/pkg/models"
)

// TemplateRepository provides data access for uploaded report templates.
type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Template, error)
	GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Template, error)
	UpdateMeta(ctx context.Context, id, userID uuid.UUID, name, description string) (*models.Template, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type templateRepository struct {
	db *database.DB
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(db *database.DB) TemplateRepository {
	return &templateRepository{db: db}
}

var _ TemplateRepository = (*templateRepository)(nil)

const templateColumns = `id, user_id, name, description, file_path, created_at`

func (r *templateRepository) Create(ctx context.Context, template *models.Template) error {
	query := `
		INSERT INTO templates (id, user_id, name, description, file_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	now := time.Now()
	_, err := r.db.Exec(ctx, query,
		template.ID,
		template.UserID,
		template.Name,
		nullString(template.Description),
		template.FilePath,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	template.CreatedAt = now

	return nil
}

func (r *templateRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM templates
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

func (r *templateRepository) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM templates
		WHERE id = $1 AND user_id = $2`

	t, err := scanTemplate(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return t, nil
}

func (r *templateRepository) UpdateMeta(ctx context.Context, id, userID uuid.UUID, name, description string) (*models.Template, error) {
	query := `
		UPDATE templates
		SET name = $3, description = $4
		WHERE id = $1 AND user_id = $2
		RETURNING ` + templateColumns

	t, err := scanTemplate(r.db.QueryRow(ctx, query, id, userID, name, nullString(description)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	return t, nil
}

func (r *templateRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM templates WHERE id = $1 AND user_id = $2`

	result, err := r.db.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var t models.Template
	var description *string

	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Name,
		&description,
		&t.FilePath,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description != nil {
		t.Description = *description
	}

	return &t, nil
}

// nullString returns nil for empty strings so the database stores NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
