// Package cache holds the fixed-window counters behind request throttling.
package cache

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store counts hits for a key within a window.
type Store interface {
	// IncrementWithTTL bumps the counter for key, opening a new window when
	// the previous one has expired, and returns the count and time left.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Open selects a store by name. The database store requires db.
func Open(kind string, db *gorm.DB) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "database":
		if db == nil {
			return nil, fmt.Errorf("cache: database store requires a database handle")
		}
		return NewDatabaseStore(db), nil
	default:
		return nil, fmt.Errorf("cache: unsupported store %q", kind)
	}
}
