package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/database"
	"github.com/charlesng35/campus/internal/models"
	"github.com/charlesng35/campus/pkg/crypto"
	apperrors "github.com/charlesng35/campus/pkg/errors"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// UserDTO is the public shape of an account.
type UserDTO struct {
	ID          uint64     `json:"id"`
	Username    string     `json:"username"`
	Nickname    string     `json:"nickname"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	Roles       []string   `json:"roles"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UserService reads and administers accounts.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// GetByID loads a user with roles.
func (s *UserService) GetByID(ctx context.Context, id uint64) (*UserDTO, error) {
	var user models.User
	err := database.Conn(ensureContext(ctx), s.db).Preload("Roles").Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	dto := mapUser(user)
	return &dto, nil
}

// List returns users ordered by username.
func (s *UserService) List(ctx context.Context, opts ListOptions) ([]UserDTO, int64, error) {
	ctx = ensureContext(ctx)
	opts = opts.normalise()

	var total int64
	if err := database.Conn(ctx, s.db).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var rows []models.User
	if err := database.Conn(ctx, s.db).
		Preload("Roles").
		Order("username ASC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	out := make([]UserDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapUser(row))
	}
	return out, total, nil
}

// SetStatus activates or disables an account.
func (s *UserService) SetStatus(ctx context.Context, id uint64, status string) error {
	if status != models.UserStatusActive && status != models.UserStatusDisabled {
		return apperrors.NewBadRequest("status must be active or disabled")
	}
	result := database.Conn(ensureContext(ctx), s.db).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("user service: set status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator when no account with that
// username exists. It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	ctx = ensureContext(ctx)
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, errors.New("user service: admin username and password are required")
	}

	created := false
	err := database.WithTransaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		var role models.Role
		if err := tx.Where("name = ?", models.RoleAdmin).Take(&role).Error; err != nil {
			return fmt.Errorf("load admin role: %w", err)
		}

		hashed, err := crypto.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		admin := models.User{
			Username: username,
			Password: hashed,
			Nickname: "Administrator",
			Status:   models.UserStatusActive,
			Roles:    []models.Role{role},
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("user service: ensure admin: %w", err)
	}
	return created, nil
}

func mapUser(user models.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Username:    user.Username,
		Nickname:    user.Nickname,
		Email:       user.Email,
		Status:      user.Status,
		Roles:       user.RoleNames(),
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}
