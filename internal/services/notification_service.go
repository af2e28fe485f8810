package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/database"
	"github.com/charlesng35/campus/internal/events"
	"github.com/charlesng35/campus/internal/models"
	apperrors "github.com/charlesng35/campus/pkg/errors"
	"github.com/charlesng35/campus/pkg/logger"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        uint64     `json:"id"`
	UserID    *uint64    `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateNotificationInput defines attributes required to persist a notification.
// A nil UserID addresses every connected client.
type CreateNotificationInput struct {
	UserID  *uint64
	Type    string
	Title   string
	Content string
}

// NotificationService manages in-app notifications. Rows are the outbox: the
// created event is raised only after the surrounding transaction commits.
type NotificationService struct {
	db  *gorm.DB
	bus *events.Bus
	now func() time.Time
	log *zap.Logger
}

// NewNotificationService constructs a NotificationService. A nil bus disables
// real-time delivery.
func NewNotificationService(db *gorm.DB, bus *events.Bus) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{
		db:  db,
		bus: bus,
		now: time.Now,
		log: logger.WithModule("notification_service"),
	}, nil
}

// Create persists a notification. It joins a transaction already carried by
// ctx; otherwise it opens one.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}
	kind := strings.TrimSpace(defaultIfEmpty(input.Type, models.NotificationTypeSystem))
	if !models.ValidNotificationType(kind) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown notification type %q", kind))
	}

	row := models.Notification{
		UserID:  input.UserID,
		Type:    kind,
		Title:   title,
		Content: strings.TrimSpace(input.Content),
	}

	err := database.WithTransaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if row.UserID != nil {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", *row.UserID).Count(&count).Error; err != nil {
				return fmt.Errorf("check user: %w", err)
			}
			if count == 0 {
				return apperrors.NewNotFound("user")
			}
		}

		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}

		if s.bus == nil {
			return nil
		}
		committed := row
		return database.AfterCommit(ctx, func(ctx context.Context) {
			_ = s.bus.Dispatch(ctx, events.NotificationCreated{Notification: committed})
		})
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	s.log.Debug("notification stored", zap.Uint64("notification_id", row.ID), zap.Bool("broadcast", row.IsBroadcast()))
	dto := mapNotification(row)
	return &dto, nil
}

// Get loads one notification.
func (s *NotificationService) Get(ctx context.Context, id uint64) (*NotificationDTO, error) {
	row, err := s.load(ensureContext(ctx), id)
	if err != nil {
		return nil, err
	}
	dto := mapNotification(*row)
	return &dto, nil
}

// ListForUser returns the user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint64, opts ListOptions) ([]NotificationDTO, error) {
	return s.list(ensureContext(ctx), userID, false, opts)
}

// ListUnread returns the user's unread notifications, newest first.
func (s *NotificationService) ListUnread(ctx context.Context, userID uint64, opts ListOptions) ([]NotificationDTO, error) {
	return s.list(ensureContext(ctx), userID, true, opts)
}

// CountForUser returns how many notifications the user has in total.
func (s *NotificationService) CountForUser(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	if err := database.Conn(ensureContext(ctx), s.db).
		Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count notifications: %w", err)
	}
	return count, nil
}

// CountUnread returns how many notifications the user has not read.
func (s *NotificationService) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	if err := database.Conn(ensureContext(ctx), s.db).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

func (s *NotificationService) list(ctx context.Context, userID uint64, unreadOnly bool, opts ListOptions) ([]NotificationDTO, error) {
	if userID == 0 {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	opts = opts.normalise()

	query := database.Conn(ctx, s.db).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return mapNotificationRows(rows), nil
}

// MarkRead flags a notification as read. Marking an already read row is a
// no-op that keeps the original read time.
func (s *NotificationService) MarkRead(ctx context.Context, id uint64) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	row, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.IsRead {
		dto := mapNotification(*row)
		return &dto, nil
	}

	now := s.now().UTC()
	result := database.Conn(ctx, s.db).
		Model(&models.Notification{}).
		Where("id = ? AND is_read = ?", row.ID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Read concurrently; report the stored read time.
		if row, err = s.load(ctx, id); err != nil {
			return nil, err
		}
		dto := mapNotification(*row)
		return &dto, nil
	}
	row.IsRead = true
	row.ReadAt = &now

	dto := mapNotification(*row)
	return &dto, nil
}

// MarkAllRead marks every unread notification of the user and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	result := database.Conn(ctx, s.db).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes a notification. A message already queued for it is dropped
// by the consumer.
func (s *NotificationService) Delete(ctx context.Context, id uint64) error {
	result := database.Conn(ensureContext(ctx), s.db).Delete(&models.Notification{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("notification")
	}
	return nil
}

// PurgeRead deletes read notifications whose read time is before cutoff.
func (s *NotificationService) PurgeRead(ctx context.Context, cutoff time.Time) (int64, error) {
	result := database.Conn(ensureContext(ctx), s.db).
		Where("is_read = ? AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: purge read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) load(ctx context.Context, id uint64) (*models.Notification, error) {
	var row models.Notification
	err := database.Conn(ctx, s.db).Take(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("notification")
	}
	if err != nil {
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}
	return &row, nil
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Content:   row.Content,
		IsRead:    row.IsRead,
		ReadAt:    row.ReadAt,
		CreatedAt: row.CreatedAt,
	}
}
