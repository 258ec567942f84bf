package middleware

import (
	"strconv"
	"time"

	"nxfs_api/internal/http/response"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter shares rdb with the rate limiter. A nil client makes
// RateLimit fall back to the in-process limiter.
func InitRedisRateLimiter(rdb *redis.Client) {
	redisClient = rdb
}

// rateLimitIdentity keys authenticated requests by user and the rest by IP.
func rateLimitIdentity(c *gin.Context) string {
	if uid, ok := UserID(c); ok {
		return "u" + strconv.FormatInt(uid, 10)
	}
	return "ip" + c.ClientIP()
}

// RateLimit is a fixed-window limiter using Redis INCR/EXPIRE.
// key format: rl:<scope>:<window_seconds>:<identity>
// Redis errors fail open.
func RateLimit(scope string, maxRequests int, window time.Duration) gin.HandlerFunc {
	local := newLocalLimiter(maxRequests, window)
	return func(c *gin.Context) {
		endpoint := scope + ":" + c.FullPath()
		if redisClient == nil {
			if !local.allow(scope + ":" + rateLimitIdentity(c)) {
				RLBlocked.WithLabelValues(endpoint).Inc()
				response.TooManyRequests(c, window)
				return
			}
			RLRequests.WithLabelValues(endpoint).Inc()
			c.Next()
			return
		}

		key := "rl:" + scope + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + rateLimitIdentity(c)
		ctx := c.Request.Context()

		val, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			redisClient.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(endpoint).Inc()
			retry := window
			if ttl, err := redisClient.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				retry = ttl
			}
			response.TooManyRequests(c, retry)
			return
		}

		RLRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}
