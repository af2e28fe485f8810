package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/database/testutil"
	"github.com/charlesng35/campus/internal/models"
	"github.com/charlesng35/campus/pkg/crypto"
)

func newLocalProvider(t *testing.T, db *gorm.DB, cfg LocalConfig) *LocalProvider {
	t.Helper()
	provider, err := NewLocalProvider(db, cfg)
	require.NoError(t, err)
	return provider
}

func createUser(t *testing.T, db *gorm.DB, username, password string, mutate func(*models.User)) models.User {
	t.Helper()
	hashed, err := crypto.HashPasswordCost(password, crypto.MinPasswordCost)
	require.NoError(t, err)

	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: hashed,
		Status:   models.UserStatusActive,
	}
	if mutate != nil {
		mutate(&user)
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestNewLocalProviderRequiresDB(t *testing.T) {
	_, err := NewLocalProvider(nil, LocalConfig{})
	require.Error(t, err)
}

func TestAuthenticateSuccessResetsCounters(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	current := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	provider := newLocalProvider(t, db, LocalConfig{Clock: func() time.Time { return current }})

	user := createUser(t, db, "alice", "password123", func(u *models.User) { u.FailedAttempts = 3 })

	result, err := provider.Authenticate(context.Background(), "ALICE", "password123")
	require.NoError(t, err)
	require.Equal(t, user.ID, result.ID)

	var updated models.User
	require.NoError(t, db.Take(&updated, "id = ?", user.ID).Error)
	require.Equal(t, 0, updated.FailedAttempts)
	require.Nil(t, updated.LockedUntil)
	require.NotNil(t, updated.LastLoginAt)
	require.True(t, updated.LastLoginAt.Equal(current))
}

func TestAuthenticateByEmail(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	provider := newLocalProvider(t, db, LocalConfig{})
	createUser(t, db, "bob", "secret-pass", nil)

	result, err := provider.Authenticate(context.Background(), "Bob@Example.com", "secret-pass")
	require.NoError(t, err)
	require.Equal(t, "bob", result.Username)
}

func TestAuthenticateInvalidPasswordLocksAccount(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	current := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	provider := newLocalProvider(t, db, LocalConfig{
		LockoutThreshold: 3,
		LockoutDuration:  10 * time.Minute,
		Clock:            func() time.Time { return current },
	})
	user := createUser(t, db, "carol", "right-password", nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := provider.Authenticate(ctx, "carol", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := provider.Authenticate(ctx, "carol", "wrong")
	require.ErrorIs(t, err, ErrAccountLocked)

	// Correct password is refused while locked.
	_, err = provider.Authenticate(ctx, "carol", "right-password")
	require.ErrorIs(t, err, ErrAccountLocked)

	var locked models.User
	require.NoError(t, db.Take(&locked, "id = ?", user.ID).Error)
	require.Equal(t, 3, locked.FailedAttempts)
	require.NotNil(t, locked.LockedUntil)

	current = current.Add(11 * time.Minute)
	_, err = provider.Authenticate(ctx, "carol", "right-password")
	require.NoError(t, err)
}

func TestAuthenticateRejectsDisabledAndUnknown(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	provider := newLocalProvider(t, db, LocalConfig{})
	createUser(t, db, "dave", "pw-dave-1", func(u *models.User) { u.Status = models.UserStatusDisabled })
	ctx := context.Background()

	_, err := provider.Authenticate(ctx, "dave", "pw-dave-1")
	require.ErrorIs(t, err, ErrAccountDisabled)

	_, err = provider.Authenticate(ctx, "nobody", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = provider.Authenticate(ctx, "  ", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterAssignsStudentRole(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	provider := newLocalProvider(t, db, LocalConfig{})
	ctx := context.Background()

	user, err := provider.Register(ctx, RegisterInput{
		Username: " erin ",
		Password: "erin-password",
		Email:    "Erin@Example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "erin", user.Username)
	require.Equal(t, "erin@example.com", user.Email)
	require.NotEqual(t, "erin-password", user.Password)

	var stored models.User
	require.NoError(t, db.Preload("Roles").Take(&stored, "id = ?", user.ID).Error)
	require.Equal(t, []string{models.RoleStudent}, stored.RoleNames())

	_, err = provider.Register(ctx, RegisterInput{Username: "ERIN", Password: "another-pass"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterUnknownRole(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	provider := newLocalProvider(t, db, LocalConfig{})

	_, err := provider.Register(context.Background(), RegisterInput{Username: "frank", Password: "pw-frank", Role: "janitor"})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestChangePassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	provider := newLocalProvider(t, db, LocalConfig{})
	user := createUser(t, db, "gina", "old-password", nil)
	ctx := context.Background()

	require.ErrorIs(t, provider.ChangePassword(ctx, user.ID, "bad", "new-password"), ErrInvalidCredentials)
	require.NoError(t, provider.ChangePassword(ctx, user.ID, "old-password", "new-password"))

	_, err := provider.Authenticate(ctx, "gina", "new-password")
	require.NoError(t, err)

	require.ErrorIs(t, provider.ChangePassword(ctx, 999, "x", "y"), ErrInvalidCredentials)
}
