// Package auth provides JWT-based authentication for report-engine.
// Unlike setups that verify a third-party issuer, this service both
// issues and validates its own HS256 tokens.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
)

// Claims is the access-token payload. Subject carries the user UUID.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// SetClaims stores JWT claims in the context. Used by the middleware
// and by handler tests that bypass it.
func SetClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserIDFromContext extracts the user UUID from JWT claims in the
// context. Returns uuid.Nil if not authenticated.
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil
	}
	return userID
}

// RequireUserIDFromContext extracts the user UUID from context and
// returns an error if not found. Every core operation goes through this
// rather than any ambient signed-in-user state.
func RequireUserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("authentication required: no user in context")
	}
	return userID, nil
}
