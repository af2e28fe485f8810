package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/campus/internal/models"
)

// DatabaseStore keeps counters in the rate_counters table so every instance
// behind a load balancer shares them.
type DatabaseStore struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, clock: time.Now}
}

// IncrementWithTTL atomically increments the counter for key under a row lock.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errors.New("cache: database store not initialised")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	now := s.clock()
	var counter models.RateCounter

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&counter, "key = ?", key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			counter = models.RateCounter{Key: key, Count: 1, ExpiresAt: now.Add(ttl)}
			if err := tx.Create(&counter).Error; err != nil {
				return err
			}
			return sweepExpired(tx, now)
		}
		if err != nil {
			return err
		}

		if !now.Before(counter.ExpiresAt) {
			counter.Count = 1
			counter.ExpiresAt = now.Add(ttl)
		} else {
			counter.Count++
		}
		return tx.Save(&counter).Error
	})
	if err != nil {
		return 0, 0, err
	}

	return counter.Count, counter.ExpiresAt.Sub(now), nil
}

func sweepExpired(tx *gorm.DB, now time.Time) error {
	return tx.Where("expires_at <= ?", now).Delete(&models.RateCounter{}).Error
}
