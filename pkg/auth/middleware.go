package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates token parsing to TokenManager.
type Middleware struct {
	tokens *TokenManager
	logger *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given TokenManager.
func NewMiddleware(tokens *TokenManager, logger *zap.Logger) *Middleware {
	return &Middleware{
		tokens: tokens,
		logger: logger,
	}
}

// RequireAuth validates the bearer token and puts its claims in context
// for downstream handlers. Requests without a resolvable user are
// rejected before any processing happens.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.validateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		next(w, r.WithContext(SetClaims(r.Context(), claims)))
	}
}

func (m *Middleware) validateRequest(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		m.logger.Debug("No JWT found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		m.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return nil, ErrInvalidAuthFormat
	}

	claims, err := m.tokens.Validate(parts[1])
	if err != nil {
		m.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		return nil, err
	}

	return claims, nil
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
