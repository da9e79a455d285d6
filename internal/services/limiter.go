package services

import (
	"context"

	"github.com/s1d40/empathy-hub-backend/internal/redis"
)

// MessageLimiter caps how fast one user may send chat messages. It is shared
// by the REST route and the room socket so both draw from one budget.
type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}
