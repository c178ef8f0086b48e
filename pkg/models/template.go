package models

import (
	"time"

	"github.com/google/uuid"
)

// DocxContentType is the MIME type used when streaming stored templates.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Template is a user-uploaded .docx document with placeholder markers.
// The server stores and streams the blob; placeholder substitution
// happens client-side against the downloaded bytes.
// Stored in templates table.
type Template struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FilePath    string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}
