package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type window struct {
	count int64
	ends  time.Time
}

// MemoryStore keeps counters in process memory. A window covers [start, end).
type MemoryStore struct {
	counters *xsync.MapOf[string, window]
	clock    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: xsync.NewMapOf[string, window](),
		clock:    time.Now,
	}
}

func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	now := s.clock()

	current, _ := s.counters.Compute(key, func(old window, loaded bool) (window, bool) {
		if !loaded || !now.Before(old.ends) {
			return window{count: 1, ends: now.Add(ttl)}, false
		}
		old.count++
		return old, false
	})

	// Expired windows are swept whenever a new window opens.
	if current.count == 1 {
		s.counters.Range(func(k string, v window) bool {
			if !now.Before(v.ends) {
				s.counters.Delete(k)
			}
			return true
		})
	}

	return current.count, current.ends.Sub(now), nil
}
