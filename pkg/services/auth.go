package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/auth"
	"github.com/otscribe/report-engine/pkg/models"
	"github.com/otscribe/report-engine/pkg/repositories"
)

const bcryptCost = 10

// TokenPair bundles the credentials returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AuthService handles account registration and token issuance.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error)
	// Refresh exchanges a valid refresh token for a new pair, rotating
	// the stored token in the process.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

type authService struct {
	users         repositories.UserRepository
	refreshTokens repositories.RefreshTokenRepository
	tokens        *auth.TokenManager
	refreshTTL    time.Duration
	logger        *zap.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users repositories.UserRepository,
	refreshTokens repositories.RefreshTokenRepository,
	tokens *auth.TokenManager,
	refreshTTL time.Duration,
	logger *zap.Logger,
) AuthService {
	return &authService{
		users:         users,
		refreshTokens: refreshTokens,
		tokens:        tokens,
		refreshTTL:    refreshTTL,
		logger:        logger,
	}
}

func (s *authService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.ErrEmailTaken
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Registered account", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Unknown email and wrong password look the same to the caller.
			return nil, nil, apperrors.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperrors.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := s.refreshTokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidRefreshToken
		}
		return nil, err
	}

	if time.Now().After(stored.ExpiresAt) {
		if err := s.refreshTokens.Delete(ctx, stored.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Failed to delete expired refresh token", zap.Error(err))
		}
		return nil, apperrors.ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}

	// Rotate: the presented token is single-use.
	if err := s.refreshTokens.Delete(ctx, stored.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return s.issuePair(ctx, user)
}

func (s *authService) issuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refresh := &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.refreshTokens.Create(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}
