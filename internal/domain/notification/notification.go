package notification

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeChatRequestReceived Type = "CHAT_REQUEST_RECEIVED"
	TypeChatRequestAccepted Type = "CHAT_REQUEST_ACCEPTED"
	TypeNewComment          Type = "NEW_COMMENT"
	TypeNewMessage          Type = "NEW_MESSAGE"
)

type Status string

const (
	StatusUnread   Status = "UNREAD"
	StatusRead     Status = "READ"
	StatusArchived Status = "ARCHIVED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUnread, StatusRead, StatusArchived:
		return true
	}
	return false
}

var ErrMissingRecipient = errors.New("notification recipient is required")

// Notification represents the notifications table.
type Notification struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID     `gorm:"type:uuid;not null;index"`
	SenderID    uuid.NullUUID `gorm:"type:uuid"`
	Type        Type          `gorm:"type:varchar(48);not null"`
	Content     string        `gorm:"type:text;not null"`
	ResourceID  string        `gorm:"type:varchar(64)"`
	Status      Status        `gorm:"type:varchar(16);not null;default:UNREAD"`
	CreatedAt   time.Time     `gorm:"not null;index"`
	UpdatedAt   time.Time     `gorm:"not null"`
}

func (Notification) TableName() string {
	return "notifications"
}

func New(recipient uuid.UUID, sender *uuid.UUID, t Type, content, resourceID string) (Notification, error) {
	if recipient == uuid.Nil {
		return Notification{}, ErrMissingRecipient
	}
	now := time.Now().UTC()
	n := Notification{
		ID:          uuid.New(),
		RecipientID: recipient,
		Type:        t,
		Content:     strings.TrimSpace(content),
		ResourceID:  resourceID,
		Status:      StatusUnread,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sender != nil {
		n.SenderID = uuid.NullUUID{UUID: *sender, Valid: true}
	}
	return n, nil
}
