package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// RegisterRequest for POST /api/auth/register
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 128)),
	)
}

// LoginRequest for POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshRequest for POST /api/auth/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// LoginResponse pairs the account with its issued tokens.
type LoginResponse struct {
	User   *models.User        `json:"user"`
	Tokens *services.TokenPair `json:"tokens"`
}

// ============================================================================
// Handler
// ============================================================================

// AuthHandler handles account registration and token issuance requests.
type AuthHandler struct {
	authService services.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
// These endpoints are unauthenticated by nature.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/register", h.Register)
	mux.HandleFunc("POST /api/users/login", h.Login)
	mux.HandleFunc("POST /api/users/refresh", h.Refresh)
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrEmailTaken) {
			h.writeError(w, http.StatusConflict, "email_taken", "An account with this email already exists")
			return
		}
		h.logger.Error("Failed to register account", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "registration_failed", "Failed to register account")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: user}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	user, tokens, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		h.logger.Error("Failed to log in", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "login_failed", "Failed to log in")
		return
	}

	response := LoginResponse{User: user, Tokens: tokens}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidRefreshToken) {
			h.writeError(w, http.StatusUnauthorized, "invalid_refresh_token", "Refresh token is invalid or expired")
			return
		}
		h.logger.Error("Failed to refresh tokens", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "refresh_failed", "Failed to refresh tokens")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: tokens}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *AuthHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
