package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
)

type NotificationRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]notification.Notification
}

var _ repository.NotificationRepository = (*NotificationRepository)(nil)

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{items: make(map[uuid.UUID]notification.Notification)}
}

func (r *NotificationRepository) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[n.ID]; ok {
		return hub_errors.ErrAlreadyExists
	}
	r.items[n.ID] = *n
	return nil
}

func (r *NotificationRepository) ListForRecipient(_ context.Context, recipientID uuid.UUID, status notification.Status, limit, offset int) ([]notification.Notification, error) {
	r.mu.RLock()
	var out []notification.Notification
	for _, n := range r.items {
		if n.RecipientID != recipientID {
			continue
		}
		if status != "" && n.Status != status {
			continue
		}
		out = append(out, n)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []notification.Notification{}, nil
	}
	out = out[offset:]
	if n := repository.ClampLimit(limit, repository.DefaultRoomLimit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *NotificationRepository) UpdateStatus(_ context.Context, id, recipientID uuid.UUID, status notification.Status) (notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.RecipientID != recipientID {
		return notification.Notification{}, hub_errors.ErrNotFound
	}
	n.Status = status
	n.UpdatedAt = time.Now().UTC()
	r.items[id] = n
	return n, nil
}

func (r *NotificationRepository) Delete(_ context.Context, id, recipientID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.RecipientID != recipientID {
		return hub_errors.ErrNotFound
	}
	delete(r.items, id)
	return nil
}
