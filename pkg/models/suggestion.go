package models

import (
	"time"

	"github.com/google/uuid"
)

// Suggestion sources reported to the client.
const (
	SuggestionSourceUser       = "user"
	SuggestionSourceSystem     = "system"
	SuggestionSourceContextual = "contextual"
)

// MaxPinsPerField caps how many suggestions may be pinned for one
// (user, category, field). Enforced at write time, not by schema.
const MaxPinsPerField = 3

// UserSuggestion is a per-user candidate value for one report field.
// (user_id, category, field_name, suggestion_text) is unique; repeated
// submissions increment UsageCount on the same row.
// Stored in user_suggestions table.
type UserSuggestion struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Category       string    `json:"category"`
	FieldName      string    `json:"field_name"`
	SuggestionText string    `json:"suggestion_text"`
	UsageCount     int       `json:"usage_count"`
	IsPinned       bool      `json:"is_pinned"`
	LastUsed       time.Time `json:"last_used"`
	CreatedAt      time.Time `json:"created_at"`
}

// ScoredSuggestion is a candidate annotated for ranking and display.
type ScoredSuggestion struct {
	ID           uuid.UUID `json:"id"`
	Text         string    `json:"text"`
	Source       string    `json:"source"`
	UsageCount   int       `json:"usageCount"`
	IsPinned     bool      `json:"isPinned"`
	ContextScore float64   `json:"contextScore"`
	Context      string    `json:"context,omitempty"`
}

// FieldUsage is one submitted (category, field, value) triple from a
// form-step submission.
type FieldUsage struct {
	Category  string `json:"category"`
	FieldName string `json:"fieldName"`
	Value     string `json:"value"`
}
