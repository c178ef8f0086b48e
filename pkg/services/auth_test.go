package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/auth"
	"github.com/otscribe/report-engine/pkg/models"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

type mockRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*models.RefreshToken
}

func newMockRefreshTokenRepo() *mockRefreshTokenRepo {
	return &mockRefreshTokenRepo{tokens: make(map[uuid.UUID]*models.RefreshToken)}
}

func (m *mockRefreshTokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *mockRefreshTokenRepo) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockRefreshTokenRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.tokens, id)
	return nil
}

func (m *mockRefreshTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, t := range m.tokens {
		if time.Now().After(t.ExpiresAt) {
			delete(m.tokens, id)
			removed++
		}
	}
	return removed, nil
}

func (m *mockRefreshTokenRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func newAuthServiceForTest(userRepo *mockUserRepo, tokenRepo *mockRefreshTokenRepo) AuthService {
	tokens := auth.NewTokenManager("test-secret-for-auth-service", time.Hour)
	return NewAuthService(userRepo, tokenRepo, tokens, 30*24*time.Hour, zap.NewNop())
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	userRepo := newMockUserRepo()
	svc := newAuthServiceForTest(userRepo, newMockRefreshTokenRepo())

	user, err := svc.Register(ctx, "  Therapist@Example.COM ", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, "therapist@example.com", user.Email)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.NotEqual(t, "correct horse battery", user.PasswordHash)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	ctx := context.Background()

	userRepo := newMockUserRepo()
	svc := newAuthServiceForTest(userRepo, newMockRefreshTokenRepo())

	_, err := svc.Register(ctx, "therapist@example.com", "correct horse battery")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "THERAPIST@example.com", "another password")
	assert.ErrorIs(t, err, apperrors.ErrEmailTaken)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	userRepo := newMockUserRepo()
	tokenRepo := newMockRefreshTokenRepo()
	svc := newAuthServiceForTest(userRepo, tokenRepo)

	registered, err := svc.Register(ctx, "therapist@example.com", "correct horse battery")
	require.NoError(t, err)

	user, pair, err := svc.Login(ctx, "therapist@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(3600), pair.ExpiresIn)
	assert.Equal(t, 1, tokenRepo.count())
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	ctx := context.Background()

	userRepo := newMockUserRepo()
	svc := newAuthServiceForTest(userRepo, newMockRefreshTokenRepo())

	_, err := svc.Register(ctx, "therapist@example.com", "correct horse battery")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "therapist@example.com", "wrong password")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	ctx := context.Background()

	svc := newAuthServiceForTest(newMockUserRepo(), newMockRefreshTokenRepo())

	_, _, err := svc.Login(ctx, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	ctx := context.Background()

	userRepo := newMockUserRepo()
	tokenRepo := newMockRefreshTokenRepo()
	svc := newAuthServiceForTest(userRepo, tokenRepo)

	_, err := svc.Register(ctx, "therapist@example.com", "correct horse battery")
	require.NoError(t, err)
	_, pair, err := svc.Login(ctx, "therapist@example.com", "correct horse battery")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Equal(t, 1, tokenRepo.count())

	// The old token is single-use.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestAuthService_Refresh_ExpiredToken(t *testing.T) {
	ctx := context.Background()

	userRepo := newMockUserRepo()
	tokenRepo := newMockRefreshTokenRepo()
	svc := newAuthServiceForTest(userRepo, tokenRepo)

	user, err := svc.Register(ctx, "therapist@example.com", "correct horse battery")
	require.NoError(t, err)

	stale := &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, tokenRepo.Create(ctx, stale))

	_, err = svc.Refresh(ctx, stale.Token)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	assert.Zero(t, tokenRepo.count())
}

func TestAuthService_Refresh_UnknownToken(t *testing.T) {
	ctx := context.Background()

	svc := newAuthServiceForTest(newMockUserRepo(), newMockRefreshTokenRepo())

	_, err := svc.Refresh(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}
