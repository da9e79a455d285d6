package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ChatService owns the chat lifecycle: direct chat initiation, chat
// requests, room creation and message sends. Every policy check runs before
// the first write, and fanout happens only after the write committed.
type ChatService struct {
	users         repository.UserRepository
	rooms         repository.ChatRoomRepository
	requests      repository.ChatRequestRepository
	filter        *DeliveryFilter
	notifications *NotificationService
	publisher     *EventPublisher
	log           *logger.Logger
}

func NewChatService(
	users repository.UserRepository,
	rooms repository.ChatRoomRepository,
	requests repository.ChatRequestRepository,
	filter *DeliveryFilter,
	notifications *NotificationService,
	publisher *EventPublisher,
	l *logger.Logger,
) *ChatService {
	return &ChatService{
		users:         users,
		rooms:         rooms,
		requests:      requests,
		filter:        filter,
		notifications: notifications,
		publisher:     publisher,
		log:           l.Named("chat_service"),
	}
}

// InitiateResult holds exactly one of Room or Request. IsNew is false when an
// existing room or pending request was returned.
type InitiateResult struct {
	Room    *chat.Room
	Request *chat.Request
	IsNew   bool
}

func (s *ChatService) InitiateDirect(ctx context.Context, actorID, targetID uuid.UUID, initialMessage string) (InitiateResult, error) {
	if actorID == targetID {
		return InitiateResult{}, hub_errors.ErrSelfChat
	}
	initialMessage = strings.TrimSpace(initialMessage)
	target, err := s.users.GetUserByID(ctx, targetID)
	if errors.Is(err, hub_errors.ErrNotFound) || (err == nil && !target.IsActive) {
		return InitiateResult{}, hub_errors.ErrUserNotFound
	}
	if err != nil {
		return InitiateResult{}, err
	}

	// A block wins over everything, including an existing room.
	blocked, err := s.filter.IsBlocked(ctx, actorID, targetID)
	if err != nil {
		return InitiateResult{}, err
	}
	if blocked {
		return InitiateResult{}, hub_errors.ErrBlocked
	}

	existing, err := s.rooms.FindDirect(ctx, actorID, targetID)
	switch {
	case err == nil:
		room := existing
		if initialMessage != "" {
			if _, room, err = s.send(ctx, actorID, existing, initialMessage); err != nil {
				return InitiateResult{}, err
			}
		}
		return InitiateResult{Room: &room}, nil
	case !errors.Is(err, hub_errors.ErrNotFound):
		return InitiateResult{}, err
	}

	switch target.ChatAvailability {
	case user.AvailabilityDoNotDisturb:
		return InitiateResult{}, hub_errors.ErrTargetUnavailable
	case user.AvailabilityRequestOnly:
		return s.createRequest(ctx, actorID, targetID, initialMessage)
	}

	var opening *chat.Message
	if initialMessage != "" {
		msg, err := chat.NewMessage(uuid.Nil, actorID, initialMessage)
		if err != nil {
			return InitiateResult{}, invalidInput(err)
		}
		opening = &msg
	}

	room, created, err := s.rooms.FindOrCreateDirect(ctx, actorID, targetID, opening)
	if err != nil {
		return InitiateResult{}, err
	}
	if created {
		s.publisher.PublishRoomCreated(ctx, room, actorID)
	}
	if opening != nil {
		s.publisher.PublishMessageNew(ctx, room, *opening)
	}
	return InitiateResult{Room: &room, IsNew: created}, nil
}

func (s *ChatService) createRequest(ctx context.Context, requesterID, requesteeID uuid.UUID, initialMessage string) (InitiateResult, error) {
	candidate, err := chat.NewRequest(requesterID, requesteeID, initialMessage)
	if err != nil {
		return InitiateResult{}, invalidInput(err)
	}

	stored, created, err := s.requests.CreatePending(ctx, candidate)
	if err != nil {
		return InitiateResult{}, err
	}
	if created {
		requester, err := s.users.GetUserByID(ctx, requesterID)
		name := "Someone"
		if err == nil {
			name = requester.Username
		}
		s.notify(ctx, requesteeID, requesterID, notification.TypeChatRequestReceived,
			fmt.Sprintf("%s sent you a chat request", name), stored.ID.String())
	}
	return InitiateResult{Request: &stored, IsNew: created}, nil
}

// AcceptRequest opens (or reuses) the direct room for a pending request. The
// status change and the room commit together, and only one of two racing
// accepts wins.
func (s *ChatService) AcceptRequest(ctx context.Context, requesteeID, requestID uuid.UUID) (chat.Room, error) {
	req, err := s.pendingRequest(ctx, requestID, func(r chat.Request) bool { return r.RequesteeID == requesteeID }, hub_errors.ErrNotRequestee)
	if err != nil {
		return chat.Room{}, err
	}
	blocked, err := s.filter.IsBlocked(ctx, req.RequesterID, req.RequesteeID)
	if err != nil {
		return chat.Room{}, err
	}
	if blocked {
		return chat.Room{}, hub_errors.ErrBlocked
	}

	// The carried message travels in the accept transaction. One that no
	// longer validates is dropped rather than blocking the accept.
	var opening *chat.Message
	if req.InitialMessage.Valid && req.InitialMessage.String != "" {
		msg, err := chat.NewMessage(uuid.Nil, req.RequesterID, req.InitialMessage.String)
		if err != nil {
			s.log.Warnf("drop initial message of request %s: %v", req.ID, err)
		} else {
			opening = &msg
		}
	}

	_, room, created, err := s.requests.Accept(ctx, req.ID, time.Now().UTC(), opening)
	if err != nil {
		return chat.Room{}, err
	}
	if created {
		s.publisher.PublishRoomCreated(ctx, room, requesteeID)
	} else {
		s.publisher.PublishRoomUpdated(ctx, room, requesteeID)
	}
	if opening != nil {
		s.publisher.PublishMessageNew(ctx, room, *opening)
	}

	accepter, err := s.users.GetUserByID(ctx, requesteeID)
	name := "Someone"
	if err == nil {
		name = accepter.Username
	}
	s.notify(ctx, req.RequesterID, requesteeID, notification.TypeChatRequestAccepted,
		fmt.Sprintf("%s accepted your chat request", name), room.ID.String())

	return room, nil
}

func (s *ChatService) DeclineRequest(ctx context.Context, requesteeID, requestID uuid.UUID) (chat.Request, error) {
	req, err := s.pendingRequest(ctx, requestID, func(r chat.Request) bool { return r.RequesteeID == requesteeID }, hub_errors.ErrNotRequestee)
	if err != nil {
		return chat.Request{}, err
	}
	return s.requests.Respond(ctx, req.ID, chat.RequestDeclined, time.Now().UTC())
}

// CancelRequest lets the requester withdraw a request that is still pending.
func (s *ChatService) CancelRequest(ctx context.Context, requesterID, requestID uuid.UUID) (chat.Request, error) {
	req, err := s.pendingRequest(ctx, requestID, func(r chat.Request) bool { return r.RequesterID == requesterID }, hub_errors.ErrNotRequester)
	if err != nil {
		return chat.Request{}, err
	}
	return s.requests.Respond(ctx, req.ID, chat.RequestCancelled, time.Now().UTC())
}

func (s *ChatService) pendingRequest(ctx context.Context, id uuid.UUID, owns func(chat.Request) bool, notOwner error) (chat.Request, error) {
	req, err := s.requests.GetByID(ctx, id)
	if errors.Is(err, hub_errors.ErrNotFound) {
		return chat.Request{}, hub_errors.ErrRequestNotFound
	}
	if err != nil {
		return chat.Request{}, err
	}
	if !owns(req) {
		return chat.Request{}, notOwner
	}
	if req.Status.Terminal() {
		return chat.Request{}, hub_errors.ErrAlreadyResponded
	}
	return req, nil
}

// SendMessage stores a message from a participant and fans it out.
func (s *ChatService) SendMessage(ctx context.Context, senderID, roomID uuid.UUID, content string) (chat.Message, error) {
	room, err := s.participantRoom(ctx, senderID, roomID)
	if err != nil {
		return chat.Message{}, err
	}
	msg, _, err := s.send(ctx, senderID, room, content)
	return msg, err
}

func (s *ChatService) send(ctx context.Context, senderID uuid.UUID, room chat.Room, content string) (chat.Message, chat.Room, error) {
	msg, err := chat.NewMessage(room.ID, senderID, content)
	if err != nil {
		return chat.Message{}, chat.Room{}, invalidInput(err)
	}
	if other, ok := room.Counterpart(senderID); ok {
		blocked, err := s.filter.IsBlocked(ctx, senderID, other)
		if err != nil {
			return chat.Message{}, chat.Room{}, err
		}
		if blocked {
			return chat.Message{}, chat.Room{}, hub_errors.ErrBlocked
		}
	}

	updated, err := s.rooms.AppendMessage(ctx, msg)
	if errors.Is(err, hub_errors.ErrNotFound) {
		return chat.Message{}, chat.Room{}, hub_errors.ErrRoomNotFound
	}
	if err != nil {
		return chat.Message{}, chat.Room{}, err
	}
	s.publisher.PublishMessageNew(ctx, updated, msg)
	return msg, updated, nil
}

// CreateGroupRoom creates a named room for the creator and members.
func (s *ChatService) CreateGroupRoom(ctx context.Context, creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (chat.Room, error) {
	members := lo.Uniq(lo.Without(memberIDs, creatorID, uuid.Nil))
	for _, id := range members {
		u, err := s.users.GetUserByID(ctx, id)
		if errors.Is(err, hub_errors.ErrNotFound) || (err == nil && !u.IsActive) {
			return chat.Room{}, hub_errors.ErrUserNotFound
		}
		if err != nil {
			return chat.Room{}, err
		}
	}
	blocked, err := s.filter.BlockedWithAny(ctx, creatorID, members)
	if err != nil {
		return chat.Room{}, err
	}
	if blocked {
		return chat.Room{}, hub_errors.ErrBlocked
	}

	room, err := chat.NewGroupRoom(name, creatorID, members)
	if err != nil {
		return chat.Room{}, invalidInput(err)
	}
	if err := s.rooms.CreateGroup(ctx, &room); err != nil {
		return chat.Room{}, err
	}
	s.publisher.PublishRoomCreated(ctx, room, creatorID)
	return room, nil
}

func (s *ChatService) ListRooms(ctx context.Context, userID uuid.UUID, limit int) ([]chat.Room, error) {
	return s.rooms.ListForUser(ctx, userID, repository.ClampLimit(limit, repository.DefaultRoomLimit))
}

func (s *ChatService) GetRoom(ctx context.Context, userID, roomID uuid.UUID) (chat.Room, error) {
	return s.participantRoom(ctx, userID, roomID)
}

func (s *ChatService) ListPendingRequests(ctx context.Context, userID uuid.UUID, limit int) ([]chat.Request, error) {
	return s.requests.ListPendingForRequestee(ctx, userID, repository.ClampLimit(limit, repository.DefaultRoomLimit))
}

// GetMessages returns a page of history, newest first.
func (s *ChatService) GetMessages(ctx context.Context, userID, roomID uuid.UUID, limit, offset int) ([]chat.Message, error) {
	if _, err := s.participantRoom(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	return s.rooms.ListMessages(ctx, roomID, repository.ClampLimit(limit, repository.DefaultMessageLimit), offset)
}

func (s *ChatService) MarkRoomRead(ctx context.Context, userID, roomID uuid.UUID) error {
	if _, err := s.participantRoom(ctx, userID, roomID); err != nil {
		return err
	}
	return s.rooms.MarkRead(ctx, roomID, userID, time.Now().UTC())
}

// AuthorizeRoomConnect checks a socket may attach to a room: the room must
// exist, the user must be a participant and no block may exist between the
// user and another participant.
func (s *ChatService) AuthorizeRoomConnect(ctx context.Context, userID, roomID uuid.UUID) (chat.Room, error) {
	room, err := s.participantRoom(ctx, userID, roomID)
	if err != nil {
		return chat.Room{}, err
	}
	others := lo.Without(room.ParticipantIDs(), userID)
	blocked, err := s.filter.BlockedWithAny(ctx, userID, others)
	if err != nil {
		return chat.Room{}, err
	}
	if blocked {
		return chat.Room{}, hub_errors.ErrBlocked
	}
	return room, nil
}

func (s *ChatService) participantRoom(ctx context.Context, userID, roomID uuid.UUID) (chat.Room, error) {
	room, err := s.rooms.GetByID(ctx, roomID)
	if errors.Is(err, hub_errors.ErrNotFound) {
		return chat.Room{}, hub_errors.ErrRoomNotFound
	}
	if err != nil {
		return chat.Room{}, err
	}
	if !room.HasParticipant(userID) {
		return chat.Room{}, hub_errors.ErrNotParticipant
	}
	return room, nil
}

// notify never fails the caller; the chat state change already committed.
func (s *ChatService) notify(ctx context.Context, recipientID, senderID uuid.UUID, t notification.Type, content, resourceID string) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.Notify(ctx, recipientID, &senderID, t, content, resourceID); err != nil {
		s.log.Warnf("notify %s of %s: %v", recipientID, t, err)
	}
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %s", hub_errors.ErrInvalidInput, err.Error())
}
