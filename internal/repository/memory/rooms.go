package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
)

type ChatRoomRepository struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]chat.Room
	direct   map[string]uuid.UUID
	messages map[uuid.UUID][]chat.Message
}

var _ repository.ChatRoomRepository = (*ChatRoomRepository)(nil)

func NewChatRoomRepository() *ChatRoomRepository {
	return &ChatRoomRepository{
		rooms:    make(map[uuid.UUID]chat.Room),
		direct:   make(map[string]uuid.UUID),
		messages: make(map[uuid.UUID][]chat.Message),
	}
}

func cloneRoom(room chat.Room) chat.Room {
	room.Participants = append([]chat.Participant(nil), room.Participants...)
	return room
}

func (r *ChatRoomRepository) GetByID(_ context.Context, id uuid.UUID) (chat.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return chat.Room{}, hub_errors.ErrNotFound
	}
	return cloneRoom(room), nil
}

func (r *ChatRoomRepository) FindDirect(_ context.Context, a, b uuid.UUID) (chat.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.direct[chat.DirectKey(a, b)]
	if !ok {
		return chat.Room{}, hub_errors.ErrNotFound
	}
	return cloneRoom(r.rooms[id]), nil
}

func (r *ChatRoomRepository) FindOrCreateDirect(_ context.Context, a, b uuid.UUID, opening *chat.Message) (chat.Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := chat.DirectKey(a, b)
	if id, ok := r.direct[key]; ok {
		room := r.rooms[id]
		if opening != nil {
			opening.RoomID = id
			room = r.appendLocked(room, *opening)
		}
		return cloneRoom(room), false, nil
	}
	room, err := chat.NewDirectRoom(a, b)
	if err != nil {
		return chat.Room{}, false, err
	}
	r.rooms[room.ID] = room
	r.direct[key] = room.ID
	if opening != nil {
		opening.RoomID = room.ID
		room = r.appendLocked(room, *opening)
	}
	return cloneRoom(room), true, nil
}

func (r *ChatRoomRepository) CreateGroup(_ context.Context, room *chat.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[room.ID]; ok {
		return hub_errors.ErrAlreadyExists
	}
	r.rooms[room.ID] = cloneRoom(*room)
	return nil
}

func (r *ChatRoomRepository) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]chat.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []chat.Room
	for _, room := range r.rooms {
		if room.HasParticipant(userID) {
			out = append(out, cloneRoom(room))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if n := repository.ClampLimit(limit, repository.DefaultRoomLimit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *ChatRoomRepository) AppendMessage(_ context.Context, msg chat.Message) (chat.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[msg.RoomID]
	if !ok {
		return chat.Room{}, hub_errors.ErrNotFound
	}
	return cloneRoom(r.appendLocked(room, msg)), nil
}

func (r *ChatRoomRepository) appendLocked(room chat.Room, msg chat.Message) chat.Room {
	r.messages[room.ID] = append(r.messages[room.ID], msg)
	if !room.LastMessage.Present() || !room.LastMessage.SentAt.Time.After(msg.CreatedAt) {
		room.LastMessage = chat.SummaryOf(msg)
		room.UpdatedAt = msg.CreatedAt
	}
	r.rooms[room.ID] = room
	return room
}

func (r *ChatRoomRepository) ListMessages(_ context.Context, roomID uuid.UUID, limit, offset int) ([]chat.Message, error) {
	r.mu.RLock()
	stored := r.messages[roomID]
	// Appends happen in commit order, so walking backwards is newest first
	// even when two messages share a timestamp.
	msgs := make([]chat.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		msgs = append(msgs, stored[i])
	}
	r.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(msgs) {
		return []chat.Message{}, nil
	}
	msgs = msgs[offset:]
	if n := repository.ClampLimit(limit, repository.DefaultMessageLimit); len(msgs) > n {
		msgs = msgs[:n]
	}
	return msgs, nil
}

func (r *ChatRoomRepository) MarkRead(_ context.Context, roomID, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return hub_errors.ErrNotFound
	}
	for i := range room.Participants {
		if room.Participants[i].UserID == userID {
			room.Participants[i].LastReadAt = sql.NullTime{Time: at, Valid: true}
			r.rooms[roomID] = room
			return nil
		}
	}
	return hub_errors.ErrNotFound
}
