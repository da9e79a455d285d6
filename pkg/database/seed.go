package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"
)

// SeedConfig holds configuration for seeding a development database
type SeedConfig struct {
	// Users maps usernames to the chat availability they are created with.
	Users []SeedUser
	// Blocks lists actor/target username pairs to create BLOCK edges for.
	Blocks [][2]string
}

type SeedUser struct {
	Username     string
	Availability user.Availability
}

// DefaultSeedConfig covers every availability mode plus one block so each
// initiate path can be exercised by hand.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Users: []SeedUser{
			{Username: "ada", Availability: user.AvailabilityOpen},
			{Username: "grace", Availability: user.AvailabilityOpen},
			{Username: "linus", Availability: user.AvailabilityRequestOnly},
			{Username: "ken", Availability: user.AvailabilityDoNotDisturb},
			{Username: "barbara", Availability: user.AvailabilityOpen},
		},
		Blocks: [][2]string{{"barbara", "grace"}},
	}
}

type SeedResult struct {
	Users []user.User
}

// Seed creates the configured users and relationships. Users that already
// exist are skipped, which makes it safe to rerun.
func Seed(ctx context.Context, users repository.UserRepository, cfg SeedConfig) (*SeedResult, error) {
	result := &SeedResult{}
	byName := make(map[string]user.User, len(cfg.Users))

	for _, su := range cfg.Users {
		u, err := user.NewUser(su.Username, su.Availability)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", su.Username, err)
		}
		if err := users.Create(ctx, &u); err != nil {
			if errors.Is(err, hub_errors.ErrAlreadyExists) {
				continue
			}
			return nil, fmt.Errorf("seed user %s: %w", su.Username, err)
		}
		byName[u.Username] = u
		result.Users = append(result.Users, u)
	}

	for _, pair := range cfg.Blocks {
		actor, okA := byName[pair[0]]
		target, okB := byName[pair[1]]
		if !okA || !okB {
			continue
		}
		rel, err := user.NewRelationship(actor.ID, target.ID, user.RelationshipBlock)
		if err != nil {
			return nil, err
		}
		if err := users.CreateRelationship(ctx, &rel); err != nil {
			return nil, fmt.Errorf("seed block %s->%s: %w", pair[0], pair[1], err)
		}
	}

	return result, nil
}
