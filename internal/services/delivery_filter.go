package services

import (
	"context"

	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/repository"

	"github.com/google/uuid"
)

// DeliveryFilter decides whether anything may cross between two users.
type DeliveryFilter struct {
	users repository.UserRepository
}

func NewDeliveryFilter(users repository.UserRepository) *DeliveryFilter {
	return &DeliveryFilter{users: users}
}

// IsBlocked reports a BLOCK edge in either direction. The second lookup is
// skipped when the first one hits.
func (f *DeliveryFilter) IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	blocked, err := f.users.HasRelationship(ctx, a, b, user.RelationshipBlock)
	if err != nil || blocked {
		return blocked, err
	}
	return f.users.HasRelationship(ctx, b, a, user.RelationshipBlock)
}

// BlockedWithAny reports whether userID has a block with any of others.
func (f *DeliveryFilter) BlockedWithAny(ctx context.Context, userID uuid.UUID, others []uuid.UUID) (bool, error) {
	for _, other := range others {
		blocked, err := f.IsBlocked(ctx, userID, other)
		if err != nil || blocked {
			return blocked, err
		}
	}
	return false, nil
}

// IsMuted reports whether recipient muted sender. Mutes only silence
// realtime notification pushes; they never affect chat delivery.
func (f *DeliveryFilter) IsMuted(ctx context.Context, recipientID, senderID uuid.UUID) (bool, error) {
	if recipientID == senderID {
		return false, nil
	}
	return f.users.HasRelationship(ctx, recipientID, senderID, user.RelationshipMute)
}
