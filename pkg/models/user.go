package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemUserID owns the seeded fallback suggestions that every account
// sees until it has history of its own. Rows under this id are read-only
// from the API's perspective.
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// User is an authenticated account. Stored in users table.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshToken is an opaque server-side token paired with an access JWT.
// Rotated on every refresh. Stored in refresh_tokens table.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
