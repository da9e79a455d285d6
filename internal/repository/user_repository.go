package repository

import (
	"context"
	"errors"

	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return hub_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, hub_errors.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *PostgresUserRepository) CreateRelationship(ctx context.Context, rel *user.Relationship) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rel).Error
}

func (r *PostgresUserRepository) DeleteRelationship(ctx context.Context, actorID, targetID uuid.UUID, t user.RelationshipType) error {
	return r.db.WithContext(ctx).
		Delete(&user.Relationship{}, "actor_id = ? AND target_id = ? AND type = ?", actorID, targetID, t).Error
}

func (r *PostgresUserRepository) HasRelationship(ctx context.Context, actorID, targetID uuid.UUID, t user.RelationshipType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&user.Relationship{}).
		Where("actor_id = ? AND target_id = ? AND type = ?", actorID, targetID, t).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
