package repository

import (
	"context"
	"errors"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *PostgresNotificationRepository) ListForRecipient(ctx context.Context, recipientID uuid.UUID, status notification.Status, limit, offset int) ([]notification.Notification, error) {
	var items []notification.Notification
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").
		Offset(clampOffset(offset)).
		Limit(ClampLimit(limit, DefaultRoomLimit)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresNotificationRepository) UpdateStatus(ctx context.Context, id, recipientID uuid.UUID, status notification.Status) (notification.Notification, error) {
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return notification.Notification{}, res.Error
	}
	if res.RowsAffected == 0 {
		return notification.Notification{}, hub_errors.ErrNotFound
	}

	var n notification.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notification.Notification{}, hub_errors.ErrNotFound
		}
		return notification.Notification{}, err
	}
	return n, nil
}

func (r *PostgresNotificationRepository) Delete(ctx context.Context, id, recipientID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Delete(&notification.Notification{}, "id = ? AND recipient_id = ?", id, recipientID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return hub_errors.ErrNotFound
	}
	return nil
}
