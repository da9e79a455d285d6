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

type ChatRequestRepository struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]chat.Request
	rooms    repository.ChatRoomRepository
}

var _ repository.ChatRequestRepository = (*ChatRequestRepository)(nil)

// NewChatRequestRepository stores requests in memory. Accepted requests open
// their direct room through rooms.
func NewChatRequestRepository(rooms repository.ChatRoomRepository) *ChatRequestRepository {
	return &ChatRequestRepository{
		requests: make(map[uuid.UUID]chat.Request),
		rooms:    rooms,
	}
}

func (r *ChatRequestRepository) GetByID(_ context.Context, id uuid.UUID) (chat.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return chat.Request{}, hub_errors.ErrNotFound
	}
	return req, nil
}

func (r *ChatRequestRepository) findPendingLocked(requesterID, requesteeID uuid.UUID) (chat.Request, bool) {
	for _, req := range r.requests {
		if req.RequesterID == requesterID && req.RequesteeID == requesteeID && req.Status == chat.RequestPending {
			return req, true
		}
	}
	return chat.Request{}, false
}

func (r *ChatRequestRepository) FindPending(_ context.Context, requesterID, requesteeID uuid.UUID) (chat.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.findPendingLocked(requesterID, requesteeID)
	if !ok {
		return chat.Request{}, hub_errors.ErrNotFound
	}
	return req, nil
}

func (r *ChatRequestRepository) CreatePending(_ context.Context, in chat.Request) (chat.Request, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.findPendingLocked(in.RequesterID, in.RequesteeID); ok {
		return existing, false, nil
	}
	in.Status = chat.RequestPending
	r.requests[in.ID] = in
	return in, true, nil
}

func (r *ChatRequestRepository) ListPendingForRequestee(_ context.Context, requesteeID uuid.UUID, limit int) ([]chat.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []chat.Request
	for _, req := range r.requests {
		if req.RequesteeID == requesteeID && req.Status == chat.RequestPending {
			out = append(out, req)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := repository.ClampLimit(limit, repository.MaxPageLimit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *ChatRequestRepository) Respond(_ context.Context, id uuid.UUID, status chat.RequestStatus, at time.Time) (chat.Request, error) {
	if !status.Terminal() {
		return chat.Request{}, hub_errors.ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return chat.Request{}, hub_errors.ErrNotFound
	}
	if req.Status != chat.RequestPending {
		return chat.Request{}, hub_errors.ErrAlreadyResponded
	}
	req.Status = status
	req.RespondedAt = sql.NullTime{Time: at, Valid: true}
	r.requests[id] = req
	return req, nil
}

// Accept holds the request lock while the room is opened, so the status only
// flips once the room exists and no other responder can slip in between.
func (r *ChatRequestRepository) Accept(ctx context.Context, id uuid.UUID, at time.Time, opening *chat.Message) (chat.Request, chat.Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return chat.Request{}, chat.Room{}, false, hub_errors.ErrNotFound
	}
	if req.Status != chat.RequestPending {
		return chat.Request{}, chat.Room{}, false, hub_errors.ErrAlreadyResponded
	}
	room, created, err := r.rooms.FindOrCreateDirect(ctx, req.RequesterID, req.RequesteeID, opening)
	if err != nil {
		return chat.Request{}, chat.Room{}, false, err
	}
	req.Status = chat.RequestAccepted
	req.RespondedAt = sql.NullTime{Time: at, Valid: true}
	r.requests[id] = req
	return req, room, created, nil
}
