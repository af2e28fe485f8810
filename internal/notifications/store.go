package notifications

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/models"
)

// Store reads committed notification rows.
type Store interface {
	// FindByID loads the row with its target user, or returns ErrNotificationNotFound.
	FindByID(ctx context.Context, id uint64) (*models.Notification, error)
}

// GormStore is a Store backed by the application database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindByID(ctx context.Context, id uint64) (*models.Notification, error) {
	var row models.Notification
	err := s.db.WithContext(ctx).Preload("User").Take(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("notifications: load %d: %w", id, err)
	}
	return &row, nil
}
