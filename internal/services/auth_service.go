package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/charlesng35/campus/internal/auth"
	apperrors "github.com/charlesng35/campus/pkg/errors"
	"github.com/charlesng35/campus/pkg/logger"
	"github.com/charlesng35/campus/pkg/metrics"
)

var (
	ErrAccountLocked   = apperrors.New("ACCOUNT_LOCKED", "Account temporarily locked", http.StatusForbidden)
	ErrAccountDisabled = apperrors.New("ACCOUNT_DISABLED", "Account disabled", http.StatusForbidden)
	ErrUsernameTaken   = apperrors.New("USERNAME_TAKEN", "Username already registered", http.StatusConflict)
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int64   `json:"expires_in"`
	User        UserDTO `json:"user"`
}

// RegisterInput captures self-service sign-up details.
type RegisterInput struct {
	Username string
	Password string
	Nickname string
	Email    string
}

// AuthService issues access tokens for local accounts.
type AuthService struct {
	local *auth.LocalProvider
	jwt   *auth.JWTService
}

func NewAuthService(local *auth.LocalProvider, jwt *auth.JWTService) (*AuthService, error) {
	if local == nil || jwt == nil {
		return nil, errors.New("auth service: local provider and jwt service are required")
	}
	return &AuthService{local: local, jwt: jwt}, nil
}

// Login verifies credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	user, err := s.local.Authenticate(ensureContext(ctx), identifier, password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return nil, apperrors.ErrInvalidCredentials
		case errors.Is(err, auth.ErrAccountLocked):
			return nil, ErrAccountLocked
		case errors.Is(err, auth.ErrAccountDisabled):
			return nil, ErrAccountDisabled
		default:
			return nil, fmt.Errorf("auth service: authenticate: %w", err)
		}
	}

	token, err := s.jwt.GenerateAccessToken(auth.AccessTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Roles:    user.RoleNames(),
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	logger.WithModule("auth").Info("user logged in", zap.Uint64("user_id", user.ID))

	return &LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwt.TTL().Seconds()),
		User:        mapUser(*user),
	}, nil
}

// Register creates a student account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*UserDTO, error) {
	user, err := s.local.Register(ensureContext(ctx), auth.RegisterInput{
		Username: input.Username,
		Password: input.Password,
		Nickname: input.Nickname,
		Email:    input.Email,
	})
	if errors.Is(err, auth.ErrUsernameTaken) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: register: %w", err)
	}
	dto := mapUser(*user)
	return &dto, nil
}

// ChangePassword replaces the caller's password.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	err := s.local.ChangePassword(ensureContext(ctx), userID, current, next)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return apperrors.ErrInvalidCredentials
	}
	return err
}
