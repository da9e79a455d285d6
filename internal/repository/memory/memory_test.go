package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestChatRoomRepository_FindOrCreateDirect_ConcurrentCallersShareRoom(t *testing.T) {
	req := require.New(t)
	repo := NewChatRoomRepository()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	const callers = 16
	ids := make([]uuid.UUID, callers)
	created := make([]bool, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y := a, b
			if i%2 == 1 {
				x, y = b, a
			}
			room, isNew, err := repo.FindOrCreateDirect(ctx, x, y, nil)
			errs[i] = err
			ids[i] = room.ID
			created[i] = isNew
		}(i)
	}
	wg.Wait()

	newCount := 0
	for i := range ids {
		req.NoError(errs[i])
		req.Equal(ids[0], ids[i])
		if created[i] {
			newCount++
		}
	}
	req.Equal(1, newCount)
}

func TestChatRoomRepository_AppendMessage_UpdatesSummaryAndHistory(t *testing.T) {
	req := require.New(t)
	repo := NewChatRoomRepository()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	room, _, err := repo.FindOrCreateDirect(ctx, a, b, nil)
	req.NoError(err)

	// When three messages are appended
	var sent []chat.Message
	for _, content := range []string{"one", "two", "three"} {
		msg, err := chat.NewMessage(room.ID, a, content)
		req.NoError(err)
		_, err = repo.AppendMessage(ctx, msg)
		req.NoError(err)
		sent = append(sent, msg)
	}

	// Then history is newest first
	history, err := repo.ListMessages(ctx, room.ID, 0, 0)
	req.NoError(err)
	req.Len(history, 3)
	req.Equal("three", history[0].Content)
	req.Equal("one", history[2].Content)

	// And pagination skips from the newest end
	page, err := repo.ListMessages(ctx, room.ID, 1, 1)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal(sent[1].ID, page[0].ID)

	// And the room summary points at the newest message
	stored, err := repo.GetByID(ctx, room.ID)
	req.NoError(err)
	req.Equal(sent[2].ID, stored.LastMessage.ID.UUID)
}

func TestChatRoomRepository_AppendMessage_UnknownRoom(t *testing.T) {
	req := require.New(t)
	repo := NewChatRoomRepository()

	msg, err := chat.NewMessage(uuid.New(), uuid.New(), "hi")
	req.NoError(err)
	_, err = repo.AppendMessage(context.Background(), msg)
	req.ErrorIs(err, hub_errors.ErrNotFound)
}

func TestChatRoomRepository_ListForUser_OrderedByRecency(t *testing.T) {
	req := require.New(t)
	repo := NewChatRoomRepository()
	ctx := context.Background()
	me, x, y := uuid.New(), uuid.New(), uuid.New()

	first, _, err := repo.FindOrCreateDirect(ctx, me, x, nil)
	req.NoError(err)
	_, _, err = repo.FindOrCreateDirect(ctx, me, y, nil)
	req.NoError(err)

	msg, err := chat.NewMessage(first.ID, x, "bump")
	req.NoError(err)
	msg.CreatedAt = time.Now().Add(time.Hour)
	_, err = repo.AppendMessage(ctx, msg)
	req.NoError(err)

	rooms, err := repo.ListForUser(ctx, me, 10)
	req.NoError(err)
	req.Len(rooms, 2)
	req.Equal(first.ID, rooms[0].ID)

	none, err := repo.ListForUser(ctx, uuid.New(), 10)
	req.NoError(err)
	req.Empty(none)
}

func TestChatRequestRepository_PendingIsUniquePerOrderedPair(t *testing.T) {
	req := require.New(t)
	repo := NewChatRequestRepository(NewChatRoomRepository())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	r1, err := chat.NewRequest(a, b, "hello")
	req.NoError(err)
	first, created, err := repo.CreatePending(ctx, r1)
	req.NoError(err)
	req.True(created)

	r2, err := chat.NewRequest(a, b, "again")
	req.NoError(err)
	second, created, err := repo.CreatePending(ctx, r2)
	req.NoError(err)
	req.False(created)
	req.Equal(first.ID, second.ID)
	req.Equal("hello", second.InitialMessage.String)

	// The reverse direction is a different pair
	r3, err := chat.NewRequest(b, a, "")
	req.NoError(err)
	_, created, err = repo.CreatePending(ctx, r3)
	req.NoError(err)
	req.True(created)
}

func TestChatRequestRepository_RespondOnlyOnce(t *testing.T) {
	req := require.New(t)
	repo := NewChatRequestRepository(NewChatRoomRepository())
	ctx := context.Background()

	r, err := chat.NewRequest(uuid.New(), uuid.New(), "")
	req.NoError(err)
	_, _, err = repo.CreatePending(ctx, r)
	req.NoError(err)

	accepted, err := repo.Respond(ctx, r.ID, chat.RequestAccepted, time.Now())
	req.NoError(err)
	req.Equal(chat.RequestAccepted, accepted.Status)
	req.True(accepted.RespondedAt.Valid)

	_, err = repo.Respond(ctx, r.ID, chat.RequestDeclined, time.Now())
	req.ErrorIs(err, hub_errors.ErrAlreadyResponded)

	_, err = repo.Respond(ctx, uuid.New(), chat.RequestDeclined, time.Now())
	req.ErrorIs(err, hub_errors.ErrNotFound)

	_, err = repo.Respond(ctx, r.ID, chat.RequestPending, time.Now())
	req.ErrorIs(err, hub_errors.ErrInvalidTransition)
}

func TestChatRoomRepository_FindOrCreateDirect_AppendsOpeningMessage(t *testing.T) {
	req := require.New(t)
	repo := NewChatRoomRepository()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	// When the room is opened with a first message
	opening, err := chat.NewMessage(uuid.Nil, a, "hey")
	req.NoError(err)
	room, created, err := repo.FindOrCreateDirect(ctx, a, b, &opening)
	req.NoError(err)
	req.True(created)

	// Then the message is bound to the new room and summarised on it
	req.Equal(room.ID, opening.RoomID)
	req.Equal(opening.ID, room.LastMessage.ID.UUID)
	history, err := repo.ListMessages(ctx, room.ID, 0, 0)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("hey", history[0].Content)
}

type failingRooms struct {
	*ChatRoomRepository
	err error
}

func (f failingRooms) FindOrCreateDirect(context.Context, uuid.UUID, uuid.UUID, *chat.Message) (chat.Room, bool, error) {
	return chat.Room{}, false, f.err
}

func TestChatRequestRepository_AcceptOpensRoomOrChangesNothing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	rooms := NewChatRoomRepository()
	a, b := uuid.New(), uuid.New()

	r, err := chat.NewRequest(a, b, "hi")
	req.NoError(err)

	// Given a store whose room writes fail
	broken := NewChatRequestRepository(failingRooms{ChatRoomRepository: rooms, err: errors.New("connection reset")})
	_, _, err = broken.CreatePending(ctx, r)
	req.NoError(err)

	// When the request is accepted
	_, _, _, err = broken.Accept(ctx, r.ID, time.Now(), nil)

	// Then the error surfaces and the request is still pending
	req.EqualError(err, "connection reset")
	stored, err := broken.GetByID(ctx, r.ID)
	req.NoError(err)
	req.Equal(chat.RequestPending, stored.Status)
	req.False(stored.RespondedAt.Valid)

	// Given a healthy store holding the same request
	repo := NewChatRequestRepository(rooms)
	_, _, err = repo.CreatePending(ctx, r)
	req.NoError(err)

	// When it is accepted
	accepted, room, created, err := repo.Accept(ctx, r.ID, time.Now(), nil)
	req.NoError(err)

	// Then the room exists and a second accept is refused
	req.True(created)
	req.Equal(chat.RequestAccepted, accepted.Status)
	found, err := rooms.FindDirect(ctx, b, a)
	req.NoError(err)
	req.Equal(room.ID, found.ID)

	_, _, _, err = repo.Accept(ctx, r.ID, time.Now(), nil)
	req.ErrorIs(err, hub_errors.ErrAlreadyResponded)
	_, _, _, err = repo.Accept(ctx, uuid.New(), time.Now(), nil)
	req.ErrorIs(err, hub_errors.ErrNotFound)
}

func TestNotificationRepository_OnlyRecipientCanTouch(t *testing.T) {
	req := require.New(t)
	repo := NewNotificationRepository()
	ctx := context.Background()
	recipient := uuid.New()

	n, err := notification.New(recipient, nil, notification.TypeNewComment, "someone replied", "post-1")
	req.NoError(err)
	req.NoError(repo.Create(ctx, &n))

	_, err = repo.UpdateStatus(ctx, n.ID, uuid.New(), notification.StatusRead)
	req.ErrorIs(err, hub_errors.ErrNotFound)

	read, err := repo.UpdateStatus(ctx, n.ID, recipient, notification.StatusRead)
	req.NoError(err)
	req.Equal(notification.StatusRead, read.Status)

	unread, err := repo.ListForRecipient(ctx, recipient, notification.StatusUnread, 10, 0)
	req.NoError(err)
	req.Empty(unread)

	all, err := repo.ListForRecipient(ctx, recipient, "", 10, 0)
	req.NoError(err)
	req.Len(all, 1)

	req.ErrorIs(repo.Delete(ctx, n.ID, uuid.New()), hub_errors.ErrNotFound)
	req.NoError(repo.Delete(ctx, n.ID, recipient))
}
