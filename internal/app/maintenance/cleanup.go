package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/models"
	"github.com/charlesng35/campus/pkg/logger"
	"github.com/charlesng35/campus/pkg/metrics"
)

const (
	defaultRetention        = 30 * 24 * time.Hour
	defaultNotificationSpec = "@daily"
	defaultLockoutSpec      = "@every 5m"

	jobNotifications = "notification_retention"
	jobLockouts      = "lockout_reset"
)

// NotificationPurger deletes read notifications older than a cutoff.
type NotificationPurger interface {
	PurgeRead(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner runs background retention jobs: purging read notifications and
// clearing account lockouts that have expired.
type Cleaner struct {
	db        *gorm.DB
	purger    NotificationPurger
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention time.Duration

	notificationSchedule string
	lockoutSchedule      string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cutoff calculations.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetention adjusts how long read notifications are kept.
func WithRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.retention = d
		}
	}
}

// WithNotificationSchedule overrides the cron specification for notification retention.
func WithNotificationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.notificationSchedule = spec
		}
	}
}

// WithLockoutSchedule overrides the cron specification for lockout resets.
func WithLockoutSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.lockoutSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the job that needs it.
func NewCleaner(db *gorm.DB, purger NotificationPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                   db,
		purger:               purger,
		now:                  time.Now,
		retention:            defaultRetention,
		notificationSchedule: defaultNotificationSpec,
		lockoutSchedule:      defaultLockoutSpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the jobs with the scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.purger == nil && c.db == nil {
		return nil
	}

	if c.purger != nil {
		if _, err := c.cron.AddFunc(c.notificationSchedule, func() {
			_ = c.purgeNotifications(context.Background())
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", jobNotifications, err)
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.lockoutSchedule, func() {
			_ = c.resetLockouts(context.Background())
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", jobLockouts, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.purger != nil {
		errs = multierr.Append(errs, c.purgeNotifications(ctx))
	}
	if c.db != nil {
		errs = multierr.Append(errs, c.resetLockouts(ctx))
	}
	return errs
}

func (c *Cleaner) purgeNotifications(ctx context.Context) error {
	cutoff := c.now().Add(-c.retention)
	removed, err := c.purger.PurgeRead(ctx, cutoff)
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(jobNotifications, "failed").Inc()
		c.log.Warn("notification retention failed", zap.Error(err))
		return err
	}
	metrics.MaintenanceRuns.WithLabelValues(jobNotifications, "ok").Inc()
	if removed > 0 {
		c.log.Info("purged read notifications", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return nil
}

func (c *Cleaner) resetLockouts(ctx context.Context) error {
	cleared, err := ResetExpiredLockouts(ctx, c.db, c.now())
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(jobLockouts, "failed").Inc()
		c.log.Warn("lockout reset failed", zap.Error(err))
		return err
	}
	metrics.MaintenanceRuns.WithLabelValues(jobLockouts, "ok").Inc()
	if cleared > 0 {
		c.log.Debug("cleared expired lockouts", zap.Int64("accounts", cleared))
	}
	return nil
}

// ResetExpiredLockouts clears the lock and failure counter of accounts whose
// lock expired before now.
func ResetExpiredLockouts(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("reset lockouts: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Model(&models.User{}).
		Where("locked_until IS NOT NULL AND locked_until < ?", now).
		Updates(map[string]any{"locked_until": nil, "failed_attempts": 0})
	if result.Error != nil {
		return 0, fmt.Errorf("reset lockouts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
