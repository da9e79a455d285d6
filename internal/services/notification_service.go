package services

import (
	"context"
	"errors"
	"strings"

	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/google/uuid"
)

type NotificationService struct {
	repo      repository.NotificationRepository
	filter    *DeliveryFilter
	publisher *EventPublisher
	log       *logger.Logger
}

func NewNotificationService(repo repository.NotificationRepository, filter *DeliveryFilter, publisher *EventPublisher, l *logger.Logger) *NotificationService {
	return &NotificationService{repo: repo, filter: filter, publisher: publisher, log: l.Named("notification_service")}
}

// Notify persists a notification and pushes it to the recipient. The push is
// skipped when the recipient muted the sender; the record is kept either way.
func (s *NotificationService) Notify(ctx context.Context, recipientID uuid.UUID, senderID *uuid.UUID, t notification.Type, content, resourceID string) (notification.Notification, error) {
	n, err := notification.New(recipientID, senderID, t, content, resourceID)
	if err != nil {
		return notification.Notification{}, invalidInput(err)
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		return notification.Notification{}, err
	}

	if senderID != nil {
		muted, err := s.filter.IsMuted(ctx, recipientID, *senderID)
		if err != nil {
			s.log.Warnf("mute lookup for notification %s: %v", n.ID, err)
		}
		if muted {
			return n, nil
		}
	}
	s.publisher.PublishNotification(ctx, n)
	return n, nil
}

// List returns the recipient's notifications, newest first. An empty status
// lists every status.
func (s *NotificationService) List(ctx context.Context, recipientID uuid.UUID, status string, limit, offset int) ([]notification.Notification, error) {
	st := notification.Status(strings.ToUpper(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, hub_errors.ErrInvalidInput
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListForRecipient(ctx, recipientID, st, repository.ClampLimit(limit, repository.DefaultMessageLimit), offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id uuid.UUID) (notification.Notification, error) {
	return s.setStatus(ctx, recipientID, id, notification.StatusRead)
}

func (s *NotificationService) Archive(ctx context.Context, recipientID, id uuid.UUID) (notification.Notification, error) {
	return s.setStatus(ctx, recipientID, id, notification.StatusArchived)
}

func (s *NotificationService) setStatus(ctx context.Context, recipientID, id uuid.UUID, status notification.Status) (notification.Notification, error) {
	n, err := s.repo.UpdateStatus(ctx, id, recipientID, status)
	if errors.Is(err, hub_errors.ErrNotFound) {
		return notification.Notification{}, hub_errors.ErrNotFound
	}
	return n, err
}

// Delete removes a notification owned by recipientID. Other users' ids look
// like missing ones.
func (s *NotificationService) Delete(ctx context.Context, recipientID, id uuid.UUID) error {
	return s.repo.Delete(ctx, id, recipientID)
}
