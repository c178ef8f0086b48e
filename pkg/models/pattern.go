package models

import (
	"time"

	"github.com/google/uuid"
)

// CompositeKeySeparator joins two field names (or two values) into the
// synthesized key of a second-order pattern, e.g. "term→deliveryType".
const CompositeKeySeparator = "→"

// ContextualPattern records that a target field's value co-occurred with
// a context field's value in the same submission. Frequency increments
// on every repeat observation; rows are never deleted automatically,
// even when the suggestion they reference is edited or removed (the
// pattern table is an append-only log of observed associations, not a
// live index).
// (user_id, category, target_field, context_field, context_value,
// suggestion_text) is unique. Stored in contextual_patterns table.
type ContextualPattern struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Category       string    `json:"category"`
	TargetField    string    `json:"target_field"`
	ContextField   string    `json:"context_field"`
	ContextValue   string    `json:"context_value"`
	SuggestionText string    `json:"suggestion_text"`
	Frequency      int       `json:"frequency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
