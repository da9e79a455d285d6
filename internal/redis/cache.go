package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Key pattern: user:{user_id}, JSON encoded identity, TTL from config.
// Relationships are deliberately not cached so a new block applies on the
// next lookup.

// CachedUserRepository serves identity lookups from Redis and falls back to
// the wrapped repository on a miss.
type CachedUserRepository struct {
	next   repository.UserRepository
	client *goredis.Client
	ttl    time.Duration
	log    *logger.Logger
}

var _ repository.UserRepository = (*CachedUserRepository)(nil)

func NewCachedUserRepository(next repository.UserRepository, client *goredis.Client, ttl time.Duration, l *logger.Logger) *CachedUserRepository {
	return &CachedUserRepository{next: next, client: client, ttl: ttl, log: l}
}

func userKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id.String())
}

func (c *CachedUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	data, err := c.client.Get(ctx, userKey(id)).Bytes()
	if err == nil {
		var u user.User
		if jerr := json.Unmarshal(data, &u); jerr == nil {
			return u, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		// Cache trouble must not fail the lookup.
		c.log.Warnf("user cache get failed: %v", err)
	}

	u, err := c.next.GetUserByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if data, err := json.Marshal(u); err == nil {
		if err := c.client.Set(ctx, userKey(id), data, c.ttl).Err(); err != nil {
			c.log.Warnf("user cache set failed: %v", err)
		}
	}
	return u, nil
}

func (c *CachedUserRepository) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, userKey(id)).Err()
}

func (c *CachedUserRepository) Create(ctx context.Context, u *user.User) error {
	if err := c.next.Create(ctx, u); err != nil {
		return err
	}
	return c.Invalidate(ctx, u.ID)
}

func (c *CachedUserRepository) CreateRelationship(ctx context.Context, r *user.Relationship) error {
	return c.next.CreateRelationship(ctx, r)
}

func (c *CachedUserRepository) DeleteRelationship(ctx context.Context, actorID, targetID uuid.UUID, t user.RelationshipType) error {
	return c.next.DeleteRelationship(ctx, actorID, targetID, t)
}

func (c *CachedUserRepository) HasRelationship(ctx context.Context, actorID, targetID uuid.UUID, t user.RelationshipType) (bool, error) {
	return c.next.HasRelationship(ctx, actorID, targetID, t)
}
