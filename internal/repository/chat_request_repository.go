package repository

import (
	"context"
	"errors"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresChatRequestRepository struct {
	db *gorm.DB
}

func NewChatRequestRepository(db *gorm.DB) ChatRequestRepository {
	return &PostgresChatRequestRepository{db: db}
}

func (r *PostgresChatRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.Request, error) {
	var req chat.Request
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Request{}, hub_errors.ErrNotFound
		}
		return chat.Request{}, err
	}
	return req, nil
}

func (r *PostgresChatRequestRepository) FindPending(ctx context.Context, requesterID, requesteeID uuid.UUID) (chat.Request, error) {
	var req chat.Request
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND requestee_id = ? AND status = ?", requesterID, requesteeID, chat.RequestPending).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Request{}, hub_errors.ErrNotFound
		}
		return chat.Request{}, err
	}
	return req, nil
}

func (r *PostgresChatRequestRepository) CreatePending(ctx context.Context, in chat.Request) (chat.Request, bool, error) {
	existing, err := r.FindPending(ctx, in.RequesterID, in.RequesteeID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, hub_errors.ErrNotFound) {
		return chat.Request{}, false, err
	}
	return r.insertPending(ctx, in)
}

// insertPending relies on the partial unique index over pending pairs: when a
// concurrent caller inserted first, its request is returned instead.
func (r *PostgresChatRequestRepository) insertPending(ctx context.Context, in chat.Request) (chat.Request, bool, error) {
	in.Status = chat.RequestPending
	if err := r.db.WithContext(ctx).Create(&in).Error; err != nil {
		if !isUniqueViolation(err) {
			return chat.Request{}, false, err
		}
		existing, ferr := r.FindPending(ctx, in.RequesterID, in.RequesteeID)
		if ferr != nil {
			return chat.Request{}, false, ferr
		}
		return existing, false, nil
	}
	return in, true, nil
}

func (r *PostgresChatRequestRepository) ListPendingForRequestee(ctx context.Context, requesteeID uuid.UUID, limit int) ([]chat.Request, error) {
	var reqs []chat.Request
	err := r.db.WithContext(ctx).
		Where("requestee_id = ? AND status = ?", requesteeID, chat.RequestPending).
		Order("created_at DESC").
		Limit(ClampLimit(limit, MaxPageLimit)).
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *PostgresChatRequestRepository) Respond(ctx context.Context, id uuid.UUID, status chat.RequestStatus, at time.Time) (chat.Request, error) {
	if !status.Terminal() {
		return chat.Request{}, hub_errors.ErrInvalidTransition
	}
	if err := respondTx(r.db.WithContext(ctx), id, status, at); err != nil {
		return chat.Request{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresChatRequestRepository) Accept(ctx context.Context, id uuid.UUID, at time.Time, opening *chat.Message) (chat.Request, chat.Room, bool, error) {
	var (
		req     chat.Request
		room    chat.Room
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := respondTx(tx, id, chat.RequestAccepted, at); err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).First(&req).Error; err != nil {
			return err
		}
		var err error
		room, created, err = findOrCreateDirectTx(tx, req.RequesterID, req.RequesteeID)
		if err != nil {
			return err
		}
		if opening == nil {
			return nil
		}
		opening.RoomID = room.ID
		return appendMessageTx(tx, *opening)
	})
	if err != nil {
		return chat.Request{}, chat.Room{}, false, err
	}
	if opening != nil {
		rooms := &PostgresChatRoomRepository{db: r.db}
		if room, err = rooms.GetByID(ctx, room.ID); err != nil {
			return chat.Request{}, chat.Room{}, false, err
		}
	}
	return req, room, created, nil
}

// respondTx is a compare-and-set on status so two concurrent responders
// cannot both win. A request that is missing reports ErrNotFound.
func respondTx(tx *gorm.DB, id uuid.UUID, status chat.RequestStatus, at time.Time) error {
	res := tx.Model(&chat.Request{}).
		Where("id = ? AND status = ?", id, chat.RequestPending).
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&chat.Request{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return hub_errors.ErrNotFound
	}
	return hub_errors.ErrAlreadyResponded
}
