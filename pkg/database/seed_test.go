package database

import (
	"context"
	"testing"

	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

func TestSeed_CreatesUsersAndBlocks(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users := memory.NewUserRepository()

	res, err := Seed(ctx, users, DefaultSeedConfig())
	req.NoError(err)
	req.Len(res.Users, 5)

	byName := map[string]user.User{}
	for _, u := range res.Users {
		byName[u.Username] = u
	}
	blocked, err := users.HasRelationship(ctx, byName["barbara"].ID, byName["grace"].ID, user.RelationshipBlock)
	req.NoError(err)
	req.True(blocked)

	// Rerunning skips existing users
	res, err = Seed(ctx, users, DefaultSeedConfig())
	req.NoError(err)
	req.Empty(res.Users)
}
