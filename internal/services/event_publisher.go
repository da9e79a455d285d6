package services

import (
	"context"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	"github.com/s1d40/empathy-hub-backend/internal/events"
	"github.com/s1d40/empathy-hub-backend/internal/transport/httpdto"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// EventPublisher turns committed state changes into broker events. Fanout is
// best effort: publish failures are retried briefly, then logged and dropped,
// because the database already holds the change.
type EventPublisher struct {
	broker     events.Publisher
	log        *logger.Logger
	maxElapsed time.Duration
}

func NewEventPublisher(broker events.Publisher, l *logger.Logger) *EventPublisher {
	return &EventPublisher{broker: broker, log: l.Named("event_publisher"), maxElapsed: 2 * time.Second}
}

// PublishMessageNew pushes the message to room sockets and a room refresh to
// every participant's update stream.
func (p *EventPublisher) PublishMessageNew(ctx context.Context, room chat.Room, msg chat.Message) {
	sender := msg.SenderID.String()
	p.publish(ctx, events.TopicChatMessages, events.PushNewMessage, httpdto.FromMessage(msg), events.Routing{
		RoomID:   room.ID.String(),
		SenderID: sender,
	})
	p.publish(ctx, events.TopicChatRoomUpdates, events.PushChatUpdate, httpdto.FromRoom(room, uuid.Nil), events.Routing{
		RoomID:       room.ID.String(),
		RecipientIDs: participantStrings(room),
		SenderID:     sender,
	})
}

// PublishRoomCreated announces a new room to all of its participants.
func (p *EventPublisher) PublishRoomCreated(ctx context.Context, room chat.Room, actorID uuid.UUID) {
	p.publishRoom(ctx, events.PushNewChatRoom, room, actorID)
}

// PublishRoomUpdated tells participants to refresh an existing room.
func (p *EventPublisher) PublishRoomUpdated(ctx context.Context, room chat.Room, actorID uuid.UUID) {
	p.publishRoom(ctx, events.PushChatUpdate, room, actorID)
}

func (p *EventPublisher) publishRoom(ctx context.Context, pushType string, room chat.Room, actorID uuid.UUID) {
	p.publish(ctx, events.TopicChatRoomUpdates, pushType, httpdto.FromRoom(room, uuid.Nil), events.Routing{
		RoomID:       room.ID.String(),
		RecipientIDs: participantStrings(room),
		SenderID:     actorID.String(),
	})
}

func (p *EventPublisher) PublishNotification(ctx context.Context, n notification.Notification) {
	routing := events.Routing{RecipientIDs: []string{n.RecipientID.String()}}
	if n.SenderID.Valid {
		routing.SenderID = n.SenderID.UUID.String()
	}
	p.publish(ctx, events.TopicNotifications, events.PushNewNotification, httpdto.FromNotification(n), routing)
}

func (p *EventPublisher) publish(ctx context.Context, topic events.Topic, pushType string, payload interface{}, routing events.Routing) {
	frame, err := events.Encode(pushType, payload)
	if err != nil {
		p.log.Errorf("encode %s: %v", pushType, err)
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxElapsedTime = p.maxElapsed

	operation := func() error {
		return p.broker.Publish(ctx, topic, frame, routing)
	}
	notify := func(err error, wait time.Duration) {
		p.log.Logger.Warn("publish failed, retrying",
			zap.String("topic", string(topic)),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		p.log.Logger.Error("publish dropped",
			zap.String("topic", string(topic)),
			zap.String("type", pushType),
			zap.Error(err),
		)
	}
}

func participantStrings(room chat.Room) []string {
	return lo.Map(room.ParticipantIDs(), func(id uuid.UUID, _ int) string {
		return id.String()
	})
}
