package services

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/repositories"
)

// TemplateUpload carries one incoming template file and its metadata.
type TemplateUpload struct {
	Name        string
	Description string
	Filename    string
	Content     io.Reader
}

// TemplateService manages a user's report template documents. Files
// live on disk under a per-deployment directory; the database row holds
// the metadata and the storage path.
type TemplateService interface {
	Upload(ctx context.Context, userID uuid.UUID, upload TemplateUpload) (*models.Template, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.Template, error)
	UpdateMeta(ctx context.Context, userID, templateID uuid.UUID, name, description string) (*models.Template, error)
	Delete(ctx context.Context, userID, templateID uuid.UUID) error
	// Open returns the template row and a reader over its stored file.
	// The caller closes the reader.
	Open(ctx context.Context, userID, templateID uuid.UUID) (*models.Template, io.ReadCloser, error)
}

type templateService struct {
	templates repositories.TemplateRepository
	dir       string
	logger    *zap.Logger
}

// NewTemplateService creates a TemplateService storing files under dir.
func NewTemplateService(templates repositories.TemplateRepository, dir string, logger *zap.Logger) TemplateService {
	return &templateService{templates: templates, dir: dir, logger: logger}
}

func (s *templateService) Upload(ctx context.Context, userID uuid.UUID, upload TemplateUpload) (*models.Template, error) {
	if !strings.EqualFold(filepath.Ext(upload.Filename), ".docx") {
		return nil, apperrors.ErrUnsupportedFileType
	}

	name := strings.TrimSpace(upload.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(upload.Filename), filepath.Ext(upload.Filename))
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create template directory: %w", err)
	}

	storedName := fmt.Sprintf("%d-%d-%s", time.Now().UnixMilli(), rand.Int63n(1e9), sanitizeFilename(upload.Filename))
	path := filepath.Join(s.dir, storedName)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create template file: %w", err)
	}
	if _, err := io.Copy(f, upload.Content); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write template file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write template file: %w", err)
	}

	template := &models.Template{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(upload.Description),
		FilePath:    path,
	}
	if err := s.templates.Create(ctx, template); err != nil {
		os.Remove(path)
		return nil, err
	}

	s.logger.Info("Stored template",
		zap.String("template_id", template.ID.String()),
		zap.String("user_id", userID.String()))
	return template, nil
}

func (s *templateService) List(ctx context.Context, userID uuid.UUID) ([]*models.Template, error) {
	return s.templates.ListByUser(ctx, userID)
}

func (s *templateService) UpdateMeta(ctx context.Context, userID, templateID uuid.UUID, name, description string) (*models.Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("template name cannot be empty")
	}
	return s.templates.UpdateMeta(ctx, templateID, userID, name, strings.TrimSpace(description))
}

func (s *templateService) Delete(ctx context.Context, userID, templateID uuid.UUID) error {
	template, err := s.templates.GetByIDForUser(ctx, templateID, userID)
	if err != nil {
		return err
	}

	if err := s.templates.Delete(ctx, templateID, userID); err != nil {
		return err
	}

	// The row is authoritative; a stray file is only worth a warning.
	if err := os.Remove(template.FilePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove template file",
			zap.String("path", template.FilePath),
			zap.Error(err))
	}
	return nil
}

func (s *templateService) Open(ctx context.Context, userID, templateID uuid.UUID) (*models.Template, io.ReadCloser, error) {
	template, err := s.templates.GetByIDForUser(ctx, templateID, userID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(template.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open template file: %w", err)
	}
	return template, f, nil
}

// sanitizeFilename keeps the stored name shell and path safe.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}
