package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/services"
)

type mockAuthService struct {
	registerErr error
	loginErr    error
	refreshErr  error
}

func (m *mockAuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &models.User{ID: uuid.New(), Email: strings.ToLower(email)}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error) {
	if m.loginErr != nil {
		return nil, nil, m.loginErr
	}
	user := &models.User{ID: uuid.New(), Email: strings.ToLower(email)}
	pair := &services.TokenPair{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}
	return user, pair, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return &services.TokenPair{AccessToken: "access2", RefreshToken: "refresh2", ExpiresIn: 3600}, nil
}

func TestAuthHandler_Register(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, zap.NewNop())

	body := `{"email":"therapist@example.com","password":"correct horse battery"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestAuthHandler_Register_InvalidEmail(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, zap.NewNop())

	body := `{"email":"not-an-email","password":"correct horse battery"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, zap.NewNop())

	body := `{"email":"therapist@example.com","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_Register_EmailTaken(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{registerErr: apperrors.ErrEmailTaken}, zap.NewNop())

	body := `{"email":"therapist@example.com","password":"correct horse battery"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAuthHandler_Login(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, zap.NewNop())

	body := `{"email":"therapist@example.com","password":"correct horse battery"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	tokens, ok := data["tokens"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "access", tokens["accessToken"])
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{loginErr: apperrors.ErrInvalidCredentials}, zap.NewNop())

	body := `{"email":"therapist@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Refresh(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, zap.NewNop())

	body := `{"refreshToken":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/refresh", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHandler_Refresh_InvalidToken(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{refreshErr: apperrors.ErrInvalidRefreshToken}, zap.NewNop())

	body := `{"refreshToken":"stale"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/refresh", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Refresh_MissingToken(t *testing.T) {
	handler := NewAuthHandler(&mockAuthService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/users/refresh", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
