package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/campus/internal/cache"
	"github.com/charlesng35/campus/pkg/errors"
	"github.com/charlesng35/campus/pkg/logger"
	"github.com/charlesng35/campus/pkg/response"
)

var errRateLimited = errors.New("RATE_LIMITED", "Too many requests", http.StatusTooManyRequests)

// RateLimit limits requests per (client IP, route) within a fixed window.
// A nil store keeps counters in process memory. Store failures let the
// request through.
func RateLimit(store cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP() + "|" + c.FullPath()

		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("rate limit store unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		remaining := int64(maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > int64(maxRequests) {
			response.Abort(c, errRateLimited)
			return
		}
		c.Next()
	}
}
