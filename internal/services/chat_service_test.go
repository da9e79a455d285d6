package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	"github.com/s1d40/empathy-hub-backend/internal/domain/user"
	"github.com/s1d40/empathy-hub-backend/internal/events"
	"github.com/s1d40/empathy-hub-backend/internal/repository/memory"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestInitiateDirect_OpenIsIdempotentInBothDirections(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)

	// When A initiates with B and then B initiates with A
	first, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "")
	req.NoError(err)
	second, err := f.chat.InitiateDirect(ctx, b.ID, a.ID, "")
	req.NoError(err)

	// Then both calls return the same room with exactly {A, B}
	req.NotNil(first.Room)
	req.NotNil(second.Room)
	req.True(first.IsNew)
	req.False(second.IsNew)
	req.Equal(first.Room.ID, second.Room.ID)
	req.ElementsMatch([]uuid.UUID{a.ID, b.ID}, second.Room.ParticipantIDs())
	req.False(second.Room.IsGroup)

	// And the room was announced once
	msgs := f.published()
	req.Equal([]string{events.PushNewChatRoom}, pushTypes(t, msgs))
	req.ElementsMatch([]string{a.ID.String(), b.ID.String()}, msgs[0].Routing.RecipientIDs)
}

func TestInitiateDirect_ConcurrentFirstCallsShareOneRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 10)
	errs := make([]error, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor, target := a.ID, b.ID
			if i%2 == 1 {
				actor, target = target, actor
			}
			res, err := f.chat.InitiateDirect(ctx, actor, target, "")
			errs[i] = err
			if err == nil {
				ids[i] = res.Room.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		req.NoError(errs[i])
		req.Equal(ids[0], ids[i])
	}
	rooms, err := f.chat.ListRooms(ctx, a.ID, 0)
	req.NoError(err)
	req.Len(rooms, 1)
}

func TestInitiateDirect_SelfChatIsRejected(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)

	_, err := f.chat.InitiateDirect(ctx, a.ID, a.ID, "hello me")

	req.ErrorIs(err, hub_errors.ErrSelfChat)
	req.ErrorIs(err, hub_errors.ErrForbidden)
	rooms, _ := f.chat.ListRooms(ctx, a.ID, 0)
	req.Empty(rooms)
	pending, _ := f.chat.ListPendingRequests(ctx, a.ID, 0)
	req.Empty(pending)
}

func TestInitiateDirect_UnknownOrInactiveTarget(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	gone := f.user(t, "gone", user.AvailabilityOpen)
	gone.IsActive = false
	f.users.Update(gone)

	_, err := f.chat.InitiateDirect(ctx, a.ID, uuid.New(), "")
	req.ErrorIs(err, hub_errors.ErrUserNotFound)

	_, err = f.chat.InitiateDirect(ctx, a.ID, gone.ID, "")
	req.ErrorIs(err, hub_errors.ErrNotFound)
}

func TestInitiateDirect_BlockWinsOverAvailability(t *testing.T) {
	for _, availability := range []user.Availability{user.AvailabilityOpen, user.AvailabilityRequestOnly, user.AvailabilityDoNotDisturb} {
		for _, direction := range []string{"actor blocks", "target blocks"} {
			t.Run(fmt.Sprintf("%s/%s", availability, direction), func(t *testing.T) {
				req := require.New(t)
				ctx := context.Background()
				f := newFixture(t)
				a := f.user(t, "a", user.AvailabilityOpen)
				b := f.user(t, "b", availability)

				// Given a block in one direction
				if direction == "actor blocks" {
					f.relate(t, a, b, user.RelationshipBlock)
				} else {
					f.relate(t, b, a, user.RelationshipBlock)
				}

				// When A initiates
				_, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "hi")

				// Then it is forbidden and nothing is created
				req.ErrorIs(err, hub_errors.ErrBlocked)
				rooms, _ := f.chat.ListRooms(ctx, a.ID, 0)
				req.Empty(rooms)
				pending, _ := f.chat.ListPendingRequests(ctx, b.ID, 0)
				req.Empty(pending)
			})
		}
	}
}

func TestInitiateDirect_BlockAfterRoomExists(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)

	res, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "")
	req.NoError(err)
	f.relate(t, b, a, user.RelationshipBlock)

	_, err = f.chat.InitiateDirect(ctx, a.ID, b.ID, "still there?")
	req.ErrorIs(err, hub_errors.ErrBlocked)

	_, err = f.chat.SendMessage(ctx, a.ID, res.Room.ID, "hello")
	req.ErrorIs(err, hub_errors.ErrBlocked)

	_, err = f.chat.AuthorizeRoomConnect(ctx, a.ID, res.Room.ID)
	req.ErrorIs(err, hub_errors.ErrBlocked)

	msgs, err := f.chat.GetMessages(ctx, a.ID, res.Room.ID, 0, 0)
	req.NoError(err)
	req.Empty(msgs)
}

func TestInitiateDirect_DoNotDisturb(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityDoNotDisturb)

	_, err := f.chat.InitiateDirect(context.Background(), a.ID, b.ID, "")

	req.ErrorIs(err, hub_errors.ErrTargetUnavailable)
}

func TestInitiateDirect_ExistingRoomAppendsInitialMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)

	first, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "")
	req.NoError(err)

	// Given B later switches to DO_NOT_DISTURB
	b.ChatAvailability = user.AvailabilityDoNotDisturb
	f.users.Update(b)
	f.published()

	// When A initiates again with a message
	again, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "  welcome back  ")

	// Then the existing room is returned and the message appended
	req.NoError(err)
	req.False(again.IsNew)
	req.Equal(first.Room.ID, again.Room.ID)
	req.Equal("welcome back", again.Room.LastMessage.Content.String)

	msgs, err := f.chat.GetMessages(ctx, b.ID, again.Room.ID, 0, 0)
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal(a.ID, msgs[0].SenderID)
	req.ElementsMatch([]string{events.PushNewMessage, events.PushChatUpdate}, pushTypes(t, f.published()))
}

func TestInitiateDirect_OpenWithInitialMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)

	res, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "hi there")
	req.NoError(err)
	req.True(res.IsNew)
	req.True(res.Room.HasUnread(b.ID))
	req.False(res.Room.HasUnread(a.ID))
}

func TestInitiateDirect_RequestOnlyDeduplicatesPending(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityRequestOnly)

	// When A initiates twice before B responds
	first, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "can we talk?")
	req.NoError(err)
	second, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "hello??")
	req.NoError(err)

	// Then one pending request exists and the second call returns it unchanged
	req.Nil(first.Room)
	req.NotNil(first.Request)
	req.True(first.IsNew)
	req.False(second.IsNew)
	req.Equal(first.Request.ID, second.Request.ID)
	req.Equal("can we talk?", second.Request.InitialMessage.String)
	req.Equal(chat.RequestPending, second.Request.Status)

	pending, err := f.chat.ListPendingRequests(ctx, b.ID, 0)
	req.NoError(err)
	req.Len(pending, 1)

	// And B was notified exactly once
	notes, err := f.notifications.List(ctx, b.ID, "", 0, 0)
	req.NoError(err)
	req.Len(notes, 1)
	req.Equal(notification.TypeChatRequestReceived, notes[0].Type)
	req.Equal(first.Request.ID.String(), notes[0].ResourceID)
	req.Equal([]string{events.PushNewNotification}, pushTypes(t, f.published()))
}

func TestInitiateDirect_RequestMessageTooLong(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityRequestOnly)

	long := make([]rune, chat.MaxInitialMessageLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := f.chat.InitiateDirect(context.Background(), a.ID, b.ID, string(long))

	req.ErrorIs(err, hub_errors.ErrInvalidInput)
}

func TestInitiateDirect_WhitespaceInitialMessageIsNoMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	open := f.user(t, "open", user.AvailabilityOpen)
	gated := f.user(t, "gated", user.AvailabilityRequestOnly)

	// When A initiates with a blank message on every path
	created, err := f.chat.InitiateDirect(ctx, a.ID, open.ID, "   ")
	req.NoError(err)
	existing, err := f.chat.InitiateDirect(ctx, a.ID, open.ID, " \t\n ")
	req.NoError(err)
	pending, err := f.chat.InitiateDirect(ctx, a.ID, gated.ID, "   ")
	req.NoError(err)

	// Then each behaves as if no message was given
	req.True(created.IsNew)
	req.False(existing.IsNew)
	req.False(existing.Room.LastMessage.Present())
	msgs, err := f.chat.GetMessages(ctx, a.ID, created.Room.ID, 0, 0)
	req.NoError(err)
	req.Empty(msgs)
	req.NotNil(pending.Request)
	req.False(pending.Request.InitialMessage.Valid)
}

// flakyRooms fails direct room writes while down is set.
type flakyRooms struct {
	*memory.ChatRoomRepository
	down *atomic.Bool
}

func newFlakyRooms(rooms *memory.ChatRoomRepository) flakyRooms {
	down := &atomic.Bool{}
	down.Store(true)
	return flakyRooms{ChatRoomRepository: rooms, down: down}
}

func (r flakyRooms) FindOrCreateDirect(ctx context.Context, a, b uuid.UUID, opening *chat.Message) (chat.Room, bool, error) {
	if r.down.Load() {
		return chat.Room{}, false, errors.New("db connection reset")
	}
	return r.ChatRoomRepository.FindOrCreateDirect(ctx, a, b, opening)
}

func TestInitiateDirect_FailedRoomWriteLeavesNothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)
	broken, _ := f.withRooms(newFlakyRooms(f.rooms))

	// When the room write fails
	_, err := broken.InitiateDirect(ctx, a.ID, b.ID, "hello")

	// Then the caller sees the error and no room or event exists
	req.EqualError(err, "db connection reset")
	_, err = f.rooms.FindDirect(ctx, a.ID, b.ID)
	req.ErrorIs(err, hub_errors.ErrNotFound)
	req.Empty(f.published())
}

func newPendingRequest(t *testing.T, f *fixture, message string) (user.User, user.User, chat.Request) {
	t.Helper()
	a := f.user(t, "requester", user.AvailabilityOpen)
	b := f.user(t, "requestee", user.AvailabilityRequestOnly)
	res, err := f.chat.InitiateDirect(context.Background(), a.ID, b.ID, message)
	require.NoError(t, err)
	require.NotNil(t, res.Request)
	f.published()
	return a, b, *res.Request
}

func TestAcceptRequest_OnlyOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b, pending := newPendingRequest(t, f, "hi!")

	// When B accepts twice
	room, err := f.chat.AcceptRequest(ctx, b.ID, pending.ID)
	req.NoError(err)
	_, err = f.chat.AcceptRequest(ctx, b.ID, pending.ID)

	// Then the second call is rejected as already responded
	req.ErrorIs(err, hub_errors.ErrAlreadyResponded)
	req.Equal(400, hub_errors.HTTPStatus(err))

	// And the room holds exactly the pair with the initial message carried over
	req.ElementsMatch([]uuid.UUID{a.ID, b.ID}, room.ParticipantIDs())
	msgs, err := f.chat.GetMessages(ctx, b.ID, room.ID, 0, 0)
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("hi!", msgs[0].Content)
	req.Equal(a.ID, msgs[0].SenderID)

	stored, err := f.requests.GetByID(ctx, pending.ID)
	req.NoError(err)
	req.Equal(chat.RequestAccepted, stored.Status)
	req.True(stored.RespondedAt.Valid)

	// And the requester was notified with the room id
	notes, err := f.notifications.List(ctx, a.ID, "UNREAD", 0, 0)
	req.NoError(err)
	req.Len(notes, 1)
	req.Equal(notification.TypeChatRequestAccepted, notes[0].Type)
	req.Equal(room.ID.String(), notes[0].ResourceID)

	types := pushTypes(t, f.published())
	req.Contains(types, events.PushNewChatRoom)
	req.Contains(types, events.PushNewMessage)
	req.Contains(types, events.PushNewNotification)
}

func TestAcceptRequest_FailedRoomWriteKeepsRequestPending(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "requester", user.AvailabilityOpen)
	b := f.user(t, "requestee", user.AvailabilityRequestOnly)

	// Given a pending request held by a store whose room writes fail
	rooms := newFlakyRooms(f.rooms)
	svc, requests := f.withRooms(rooms)
	res, err := svc.InitiateDirect(ctx, a.ID, b.ID, "hi!")
	req.NoError(err)
	req.NotNil(res.Request)
	f.published()

	// When B accepts
	_, err = svc.AcceptRequest(ctx, b.ID, res.Request.ID)

	// Then the accept fails and changes nothing
	req.EqualError(err, "db connection reset")
	stored, err := requests.GetByID(ctx, res.Request.ID)
	req.NoError(err)
	req.Equal(chat.RequestPending, stored.Status)
	_, err = f.rooms.FindDirect(ctx, a.ID, b.ID)
	req.ErrorIs(err, hub_errors.ErrNotFound)
	req.Empty(f.published())

	// And a retry once storage recovers opens the room with the carried message
	rooms.down.Store(false)
	room, err := svc.AcceptRequest(ctx, b.ID, res.Request.ID)
	req.NoError(err)
	req.Equal("hi!", room.LastMessage.Content.String)
	msgs, err := svc.GetMessages(ctx, b.ID, room.ID, 0, 0)
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal(a.ID, msgs[0].SenderID)
}

func TestAcceptRequest_ConcurrentAcceptsHaveOneWinner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	_, b, pending := newPendingRequest(t, f, "")

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.chat.AcceptRequest(ctx, b.ID, pending.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		req.True(errors.Is(err, hub_errors.ErrAlreadyResponded), err.Error())
	}
	req.Equal(1, wins)
}

func TestAcceptRequest_Guards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, _, pending := newPendingRequest(t, f, "")

	_, err := f.chat.AcceptRequest(ctx, a.ID, pending.ID)
	req.ErrorIs(err, hub_errors.ErrNotRequestee)

	_, err = f.chat.AcceptRequest(ctx, a.ID, uuid.New())
	req.ErrorIs(err, hub_errors.ErrRequestNotFound)
}

func TestDeclineRequest_CreatesNoRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b, pending := newPendingRequest(t, f, "")

	declined, err := f.chat.DeclineRequest(ctx, b.ID, pending.ID)
	req.NoError(err)
	req.Equal(chat.RequestDeclined, declined.Status)

	_, err = f.chat.AcceptRequest(ctx, b.ID, pending.ID)
	req.ErrorIs(err, hub_errors.ErrAlreadyResponded)

	rooms, err := f.chat.ListRooms(ctx, a.ID, 0)
	req.NoError(err)
	req.Empty(rooms)

	// A may ask again once the old request is terminal
	again, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "")
	req.NoError(err)
	req.True(again.IsNew)
	req.NotEqual(pending.ID, again.Request.ID)
}

func TestCancelRequest(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b, pending := newPendingRequest(t, f, "")

	_, err := f.chat.CancelRequest(ctx, b.ID, pending.ID)
	req.ErrorIs(err, hub_errors.ErrNotRequester)

	cancelled, err := f.chat.CancelRequest(ctx, a.ID, pending.ID)
	req.NoError(err)
	req.Equal(chat.RequestCancelled, cancelled.Status)

	pendingList, err := f.chat.ListPendingRequests(ctx, b.ID, 0)
	req.NoError(err)
	req.Empty(pendingList)
}

func TestSendMessage_HistoryRoundTrip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)
	res, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "")
	req.NoError(err)
	f.published()

	// Given a conversation of alternating messages
	var sent []chat.Message
	for i := 0; i < 6; i++ {
		sender := a.ID
		if i%2 == 1 {
			sender = b.ID
		}
		msg, err := f.chat.SendMessage(ctx, sender, res.Room.ID, fmt.Sprintf("message %d", i))
		req.NoError(err)
		sent = append(sent, msg)
	}

	// When history is read back
	history, err := f.chat.GetMessages(ctx, a.ID, res.Room.ID, 0, 0)
	req.NoError(err)

	// Then it matches what was sent, newest first
	req.Len(history, len(sent))
	for i, msg := range history {
		want := sent[len(sent)-1-i]
		req.Equal(want.ID, msg.ID)
		req.Equal(want.Content, msg.Content)
		req.Equal(want.SenderID, msg.SenderID)
		req.Equal(res.Room.ID, msg.RoomID)
	}

	page, err := f.chat.GetMessages(ctx, a.ID, res.Room.ID, 2, 2)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal(sent[3].ID, page[0].ID)

	// And each send published a message and a room update
	msgs := f.published()
	req.Len(msgs, 12)
	for _, m := range msgs {
		if m.Topic == events.TopicChatMessages {
			req.Equal(res.Room.ID.String(), m.Routing.RoomID)
		} else {
			req.Equal(events.TopicChatRoomUpdates, m.Topic)
			req.Len(m.Routing.RecipientIDs, 2)
		}
	}
}

func TestSendMessage_Guards(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)
	outsider := f.user(t, "c", user.AvailabilityOpen)
	res, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "")
	req.NoError(err)

	_, err = f.chat.SendMessage(ctx, a.ID, uuid.New(), "hi")
	req.ErrorIs(err, hub_errors.ErrRoomNotFound)

	_, err = f.chat.SendMessage(ctx, outsider.ID, res.Room.ID, "hi")
	req.ErrorIs(err, hub_errors.ErrNotParticipant)

	_, err = f.chat.SendMessage(ctx, a.ID, res.Room.ID, "   ")
	req.ErrorIs(err, hub_errors.ErrInvalidInput)

	_, err = f.chat.GetMessages(ctx, outsider.ID, res.Room.ID, 0, 0)
	req.ErrorIs(err, hub_errors.ErrNotParticipant)

	_, err = f.chat.GetRoom(ctx, outsider.ID, res.Room.ID)
	req.ErrorIs(err, hub_errors.ErrNotParticipant)
}

func TestMarkRoomRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)
	res, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "ping")
	req.NoError(err)

	rooms, err := f.chat.ListRooms(ctx, b.ID, 0)
	req.NoError(err)
	req.True(rooms[0].HasUnread(b.ID))

	req.NoError(f.chat.MarkRoomRead(ctx, b.ID, res.Room.ID))

	room, err := f.chat.GetRoom(ctx, b.ID, res.Room.ID)
	req.NoError(err)
	req.False(room.HasUnread(b.ID))
}

func TestCreateGroupRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)
	c := f.user(t, "c", user.AvailabilityOpen)

	room, err := f.chat.CreateGroupRoom(ctx, a.ID, "circle", []uuid.UUID{b.ID, c.ID, b.ID, a.ID})
	req.NoError(err)
	req.True(room.IsGroup)
	req.ElementsMatch([]uuid.UUID{a.ID, b.ID, c.ID}, room.ParticipantIDs())

	_, err = f.chat.CreateGroupRoom(ctx, a.ID, "empty", []uuid.UUID{a.ID})
	req.ErrorIs(err, hub_errors.ErrInvalidInput)

	_, err = f.chat.CreateGroupRoom(ctx, a.ID, "ghost", []uuid.UUID{uuid.New()})
	req.ErrorIs(err, hub_errors.ErrUserNotFound)

	f.relate(t, c, a, user.RelationshipBlock)
	_, err = f.chat.CreateGroupRoom(ctx, a.ID, "again", []uuid.UUID{b.ID, c.ID})
	req.ErrorIs(err, hub_errors.ErrBlocked)
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, events.Topic, []byte, events.Routing) error {
	p.calls++
	return errors.New("broker down")
}

func TestSendMessage_BrokerFailureDoesNotFailSender(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "a", user.AvailabilityOpen)
	b := f.user(t, "b", user.AvailabilityOpen)
	res, err := f.chat.InitiateDirect(ctx, a.ID, b.ID, "")
	req.NoError(err)

	// Given a publisher whose broker always fails
	broken := &failingPublisher{}
	f.chat.publisher = NewEventPublisher(broken, f.chat.log)
	f.chat.publisher.maxElapsed = 150 * time.Millisecond

	// When a message is sent
	msg, err := f.chat.SendMessage(ctx, a.ID, res.Room.ID, "persisted anyway")

	// Then the send succeeds, the message is stored and publishing was retried
	req.NoError(err)
	history, err := f.chat.GetMessages(ctx, b.ID, res.Room.ID, 0, 0)
	req.NoError(err)
	req.Equal(msg.ID, history[0].ID)
	req.Greater(broken.calls, 2)
}
