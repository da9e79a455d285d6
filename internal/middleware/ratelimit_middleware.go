package middleware

import (
	"fmt"
	"strconv"

	"github.com/s1d40/empathy-hub-backend/internal/redis"
	"github.com/s1d40/empathy-hub-backend/internal/services"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// MessageRateLimitMiddleware applies the per-user message budget. It must run
// after AuthMiddleware and inside ErrorHandler. A nil limiter disables limiting.
func MessageRateLimitMiddleware(limiter services.MessageLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := limiter.AllowMessage(c.Request.Context(), userID.String())
		if err != nil {
			_ = c.Error(fmt.Errorf("rate limit check: %w", err))
			c.Abort()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			_ = c.Error(hub_errors.ErrRateLimited)
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
