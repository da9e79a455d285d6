package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/s1d40/empathy-hub-backend/config"
	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/events"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	"github.com/s1d40/empathy-hub-backend/internal/repository/memory"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	users         *memory.UserRepository
	rooms         *memory.ChatRoomRepository
	requests      *memory.ChatRequestRepository
	notifRepo     *memory.NotificationRepository
	broker        *events.MemoryBroker
	auth          *AuthService
	chat          *ChatService
	notifications *NotificationService
	filter        *DeliveryFilter
	publisher     *EventPublisher
	out           chan events.Message
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	l := logger.NewNop()
	rooms := memory.NewChatRoomRepository()
	f := &fixture{
		users:     memory.NewUserRepository(),
		rooms:     rooms,
		requests:  memory.NewChatRequestRepository(rooms),
		notifRepo: memory.NewNotificationRepository(),
		broker:    events.NewMemoryBroker(),
		out:       make(chan events.Message, 256),
	}
	filter := NewDeliveryFilter(f.users)
	publisher := NewEventPublisher(f.broker, l)
	f.notifications = NewNotificationService(f.notifRepo, filter, publisher, l)
	f.chat = NewChatService(f.users, f.rooms, f.requests, filter, f.notifications, publisher, l)
	f.filter, f.publisher = filter, publisher
	f.auth = NewAuthService(f.users, &config.Config{JWTSecret: "test-secret", JWTExpiryMin: 5})

	for _, topic := range events.Topics() {
		topic := topic
		go func() { _ = f.broker.Subscribe(ctx, topic, events.SubscriptionName(topic, "test"), f.out) }()
	}
	for _, topic := range events.Topics() {
		topic := topic
		require.Eventually(t, func() bool {
			return len(f.broker.Subscriptions(topic)) == 1
		}, time.Second, 5*time.Millisecond)
	}
	return f
}

func (f *fixture) user(t *testing.T, name string, availability user.Availability) user.User {
	t.Helper()
	u, err := user.NewUser(name, availability)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), &u))
	return u
}

func (f *fixture) relate(t *testing.T, actor, target user.User, kind user.RelationshipType) {
	t.Helper()
	rel, err := user.NewRelationship(actor.ID, target.ID, kind)
	require.NoError(t, err)
	require.NoError(t, f.users.CreateRelationship(context.Background(), &rel))
}

// published collects broker deliveries until the stream is quiet.
func (f *fixture) published() []events.Message {
	var msgs []events.Message
	for {
		select {
		case m := <-f.out:
			msgs = append(msgs, m)
		case <-time.After(100 * time.Millisecond):
			return msgs
		}
	}
}

func pushTypes(t *testing.T, msgs []events.Message) []string {
	t.Helper()
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		var env events.Envelope
		require.NoError(t, json.Unmarshal(m.Payload, &env))
		types = append(types, env.Type)
	}
	return types
}

// withRooms returns a chat service over the fixture's stores whose room
// writes go through rooms instead.
func (f *fixture) withRooms(rooms repository.ChatRoomRepository) (*ChatService, *memory.ChatRequestRepository) {
	requests := memory.NewChatRequestRepository(rooms)
	return NewChatService(f.users, rooms, requests, f.filter, f.notifications, f.publisher, logger.NewNop()), requests
}
