package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
)

// UserRepository reads identities and relationships. The write methods exist
// for seeding and tests; the chat core never mutates users.
type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)

	CreateRelationship(ctx context.Context, r *user.Relationship) error
	DeleteRelationship(ctx context.Context, actorID, targetID uuid.UUID, t user.RelationshipType) error
	HasRelationship(ctx context.Context, actorID, targetID uuid.UUID, t user.RelationshipType) (bool, error)
}

type ChatRoomRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (chat.Room, error)
	FindDirect(ctx context.Context, a, b uuid.UUID) (chat.Room, error)
	// FindOrCreateDirect returns the direct room for the unordered pair,
	// creating it when absent. created is false when another caller won. A
	// non-nil opening message gets the room's ID and is appended in the same
	// transaction, so a failed append leaves no new room behind.
	FindOrCreateDirect(ctx context.Context, a, b uuid.UUID, opening *chat.Message) (room chat.Room, created bool, err error)
	CreateGroup(ctx context.Context, room *chat.Room) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]chat.Room, error)

	// AppendMessage stores msg and refreshes the room's last message summary
	// in the same transaction. It returns the updated room.
	AppendMessage(ctx context.Context, msg chat.Message) (chat.Room, error)
	// ListMessages returns messages newest first.
	ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]chat.Message, error)
	MarkRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error
}

type ChatRequestRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (chat.Request, error)
	FindPending(ctx context.Context, requesterID, requesteeID uuid.UUID) (chat.Request, error)
	// CreatePending inserts r unless a PENDING request already exists for the
	// same ordered pair, in which case that request is returned unchanged.
	CreatePending(ctx context.Context, r chat.Request) (req chat.Request, created bool, err error)
	ListPendingForRequestee(ctx context.Context, requesteeID uuid.UUID, limit int) ([]chat.Request, error)
	// Respond moves a PENDING request to status. It fails with
	// ErrAlreadyResponded when the request is no longer PENDING.
	Respond(ctx context.Context, id uuid.UUID, status chat.RequestStatus, at time.Time) (chat.Request, error)
	// Accept moves a PENDING request to ACCEPTED and finds or creates the
	// direct room of its pair in one transaction, appending opening when it
	// is non-nil. Nothing changes when any step fails.
	Accept(ctx context.Context, id uuid.UUID, at time.Time, opening *chat.Message) (req chat.Request, room chat.Room, created bool, err error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, status notification.Status, limit, offset int) ([]notification.Notification, error)
	UpdateStatus(ctx context.Context, id, recipientID uuid.UUID, status notification.Status) (notification.Notification, error)
	Delete(ctx context.Context, id, recipientID uuid.UUID) error
}
