package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/auth"
	"github.com/charlesng35/campus/internal/models"
	apperrors "github.com/charlesng35/campus/pkg/errors"
)

func newAuthService(t *testing.T, db *gorm.DB) (*AuthService, *auth.JWTService) {
	t.Helper()
	local, err := auth.NewLocalProvider(db, auth.LocalConfig{LockoutThreshold: 2})
	require.NoError(t, err)
	jwt, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour})
	require.NoError(t, err)
	svc, err := NewAuthService(local, jwt)
	require.NoError(t, err)
	return svc, jwt
}

func TestAuthServiceRegisterThenLogin(t *testing.T) {
	db := openServiceDB(t)
	svc, jwt := newAuthService(t, db)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "newbie", Password: "newbie-pass"})
	require.NoError(t, err)
	require.Equal(t, []string{models.RoleStudent}, user.Roles)

	_, err = svc.Register(ctx, RegisterInput{Username: "newbie", Password: "x"})
	require.ErrorIs(t, err, ErrUsernameTaken)

	result, err := svc.Login(ctx, "newbie", "newbie-pass")
	require.NoError(t, err)
	require.Equal(t, "Bearer", result.TokenType)
	require.EqualValues(t, 3600, result.ExpiresIn)

	claims, err := jwt.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, "newbie", claims.Username)
	require.True(t, claims.HasRole(models.RoleStudent))
}

func TestAuthServiceLoginErrors(t *testing.T) {
	db := openServiceDB(t)
	svc, _ := newAuthService(t, db)
	mustCreateUser(t, db, "lock", models.RoleStudent)
	ctx := context.Background()

	_, err := svc.Login(ctx, "lock", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "lock", "wrong")
	require.ErrorIs(t, err, ErrAccountLocked)

	disabled := mustCreateUser(t, db, "off", models.RoleStudent)
	require.NoError(t, db.Model(&disabled).Update("status", models.UserStatusDisabled).Error)
	_, err = svc.Login(ctx, "off", "password-off")
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthServiceChangePassword(t *testing.T) {
	db := openServiceDB(t)
	svc, _ := newAuthService(t, db)
	user := mustCreateUser(t, db, "pw", models.RoleStudent)
	ctx := context.Background()

	require.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "nope", "next-pass"), apperrors.ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "password-pw", "next-pass"))

	_, err := svc.Login(ctx, "pw", "next-pass")
	require.NoError(t, err)
}
