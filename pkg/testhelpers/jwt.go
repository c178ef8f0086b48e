// Package testhelpers provides utilities for testing report-engine components.
package testhelpers

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/otscribe/report-engine/pkg/auth"
)

// TestJWTSecret signs tokens in tests. Handlers under test must use a
// TokenManager built with the same secret.
const TestJWTSecret = "report-engine-test-secret"

// NewTestTokenManager returns a TokenManager wired with the shared test
// secret and a one hour access TTL.
func NewTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager(TestJWTSecret, time.Hour)
}

// GenerateTestJWT issues a signed access token for the given user.
func GenerateTestJWT(t *testing.T, userID uuid.UUID, email string) string {
	t.Helper()

	token, err := NewTestTokenManager().Issue(userID, email)
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return token
}

// GenerateTestJWTWithBearer returns the token with the "Bearer " prefix
// for the Authorization header.
func GenerateTestJWTWithBearer(t *testing.T, userID uuid.UUID, email string) string {
	return "Bearer " + GenerateTestJWT(t, userID, email)
}
