// Package memory holds in-process implementations of the repository
// contracts. They back STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sync"

	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
)

type relationshipKey struct {
	actor, target uuid.UUID
	kind          user.RelationshipType
}

type UserRepository struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]user.User
	usernames     map[string]uuid.UUID
	relationships map[relationshipKey]user.Relationship
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:         make(map[uuid.UUID]user.User),
		usernames:     make(map[string]uuid.UUID),
		relationships: make(map[relationshipKey]user.Relationship),
	}
}

func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; ok {
		return hub_errors.ErrAlreadyExists
	}
	if _, ok := r.usernames[u.Username]; ok {
		return hub_errors.ErrAlreadyExists
	}
	r.users[u.ID] = *u
	r.usernames[u.Username] = u.ID
	return nil
}

// Update replaces a stored user. Used by tests to flip availability or the
// active flag.
func (r *UserRepository) Update(u user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *UserRepository) GetUserByID(_ context.Context, id uuid.UUID) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return user.User{}, hub_errors.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) CreateRelationship(_ context.Context, rel *user.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := relationshipKey{actor: rel.ActorID, target: rel.TargetID, kind: rel.Type}
	if _, ok := r.relationships[key]; !ok {
		r.relationships[key] = *rel
	}
	return nil
}

func (r *UserRepository) DeleteRelationship(_ context.Context, actorID, targetID uuid.UUID, t user.RelationshipType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.relationships, relationshipKey{actor: actorID, target: targetID, kind: t})
	return nil
}

func (r *UserRepository) HasRelationship(_ context.Context, actorID, targetID uuid.UUID, t user.RelationshipType) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.relationships[relationshipKey{actor: actorID, target: targetID, kind: t}]
	return ok, nil
}
