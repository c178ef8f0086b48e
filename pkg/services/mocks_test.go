package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/repositories"
)

// ============================================================================
// Mock Implementations shared across service tests
// ============================================================================

type mockSuggestionRepo struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]*models.UserSuggestion
	upsertErr   error
	listErr     error
	countErr    error
	setPinErr   error
	upsertCalls int
}

func newMockSuggestionRepo() *mockSuggestionRepo {
	return &mockSuggestionRepo{rows: make(map[uuid.UUID]*models.UserSuggestion)}
}

func (m *mockSuggestionRepo) UpsertUsage(ctx context.Context, userID uuid.UUID, category, fieldName, text string) (*models.UserSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	for _, row := range m.rows {
		if row.UserID == userID && row.Category == category && row.FieldName == fieldName && row.SuggestionText == text {
			row.UsageCount++
			row.LastUsed = time.Now()
			copied := *row
			return &copied, nil
		}
	}
	row := &models.UserSuggestion{
		ID:             uuid.New(),
		UserID:         userID,
		Category:       category,
		FieldName:      fieldName,
		SuggestionText: text,
		UsageCount:     1,
		LastUsed:       time.Now(),
		CreatedAt:      time.Now(),
	}
	m.rows[row.ID] = row
	copied := *row
	return &copied, nil
}

func (m *mockSuggestionRepo) ListByField(ctx context.Context, userID uuid.UUID, category, fieldName string, minUsage int) ([]*models.UserSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.UserSuggestion
	for _, row := range m.rows {
		if row.UserID == userID && row.Category == category && row.FieldName == fieldName && row.UsageCount >= minUsage {
			copied := *row
			out = append(out, &copied)
		}
	}
	sortSuggestionRows(out)
	return out, nil
}

func (m *mockSuggestionRepo) ListPinned(ctx context.Context, userID uuid.UUID, category, fieldName string, limit int) ([]*models.UserSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.UserSuggestion
	for _, row := range m.rows {
		if row.UserID == userID && row.Category == category && row.FieldName == fieldName && row.IsPinned {
			copied := *row
			out = append(out, &copied)
		}
	}
	sortSuggestionRows(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSuggestionRepo) CountPinned(ctx context.Context, userID uuid.UUID, category, fieldName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.Category == category && row.FieldName == fieldName && row.IsPinned {
			count++
		}
	}
	return count, nil
}

func (m *mockSuggestionRepo) GetByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.UserSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (m *mockSuggestionRepo) UpdateText(ctx context.Context, id, userID uuid.UUID, text string) (*models.UserSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	row.SuggestionText = text
	copied := *row
	return &copied, nil
}

func (m *mockSuggestionRepo) SetPinned(ctx context.Context, id, userID uuid.UUID, pinned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setPinErr != nil {
		return m.setPinErr
	}
	row, ok := m.rows[id]
	if !ok || row.UserID != userID {
		return apperrors.ErrNotFound
	}
	row.IsPinned = pinned
	return nil
}

func (m *mockSuggestionRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.UserID != userID {
		return apperrors.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

// add seeds a row directly, bypassing the upsert path.
func (m *mockSuggestionRepo) add(row *models.UserSuggestion) *models.UserSuggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	m.rows[row.ID] = row
	return row
}

func sortSuggestionRows(rows []*models.UserSuggestion) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && suggestionRowLess(rows[j], rows[j-1]); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func suggestionRowLess(a, b *models.UserSuggestion) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	return a.UsageCount > b.UsageCount
}

type mockPatternRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.ContextualPattern
	upsertErr error
	findErr   error
	sumErr    error
	maxErr    error
	listErr   error
}

func newMockPatternRepo() *mockPatternRepo {
	return &mockPatternRepo{rows: make(map[string]*models.ContextualPattern)}
}

func patternMapKey(k repositories.PatternKey) string {
	return strings.Join([]string{
		k.UserID.String(), k.Category, k.TargetField, k.ContextField, k.ContextValue, k.SuggestionText,
	}, "|")
}

func (m *mockPatternRepo) Upsert(ctx context.Context, key repositories.PatternKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	mapKey := patternMapKey(key)
	if row, ok := m.rows[mapKey]; ok {
		row.Frequency++
		row.UpdatedAt = time.Now()
		return row.Frequency, nil
	}
	m.rows[mapKey] = &models.ContextualPattern{
		ID:             uuid.New(),
		UserID:         key.UserID,
		Category:       key.Category,
		TargetField:    key.TargetField,
		ContextField:   key.ContextField,
		ContextValue:   key.ContextValue,
		SuggestionText: key.SuggestionText,
		Frequency:      1,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	return 1, nil
}

func (m *mockPatternRepo) Find(ctx context.Context, key repositories.PatternKey) (*models.ContextualPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	row, ok := m.rows[patternMapKey(key)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (m *mockPatternRepo) MaxFrequency(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxErr != nil {
		return 0, m.maxErr
	}
	max := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.Category == category && row.TargetField == targetField &&
			row.ContextField == contextField && row.ContextValue == contextValue && row.Frequency > max {
			max = row.Frequency
		}
	}
	return max, nil
}

func (m *mockPatternRepo) SumFrequency(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sumErr != nil {
		return 0, m.sumErr
	}
	sum := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.Category == category && row.TargetField == targetField &&
			row.ContextField == contextField && row.ContextValue == contextValue {
			sum += row.Frequency
		}
	}
	return sum, nil
}

func (m *mockPatternRepo) ListByContext(ctx context.Context, userID uuid.UUID, category, targetField, contextField, contextValue string, limit int) ([]*models.ContextualPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.ContextualPattern
	for _, row := range m.rows {
		if row.UserID == userID && row.Category == category && row.TargetField == targetField &&
			row.ContextField == contextField && row.ContextValue == contextValue {
			copied := *row
			out = append(out, &copied)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Frequency > out[j-1].Frequency; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ repositories.SuggestionRepository = (*mockSuggestionRepo)(nil)
	_ repositories.PatternRepository    = (*mockPatternRepo)(nil)
)
