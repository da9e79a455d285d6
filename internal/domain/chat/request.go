package chat

import (
	"database/sql"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestAccepted  RequestStatus = "ACCEPTED"
	RequestDeclined  RequestStatus = "DECLINED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s RequestStatus) Terminal() bool {
	return s != RequestPending
}

var (
	ErrSelfRequest           = errors.New("cannot send a chat request to yourself")
	ErrInitialMessageTooLong = errors.New("initial message exceeds 500 characters")
)

// Request represents the chat_requests table. At most one PENDING request
// exists per ordered (requester, requestee) pair; a partial unique index
// enforces it.
type Request struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	RequesterID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	RequesteeID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	InitialMessage sql.NullString `gorm:"type:varchar(500)"`
	Status         RequestStatus  `gorm:"type:varchar(16);not null;default:PENDING"`
	CreatedAt      time.Time      `gorm:"not null"`
	RespondedAt    sql.NullTime
}

func (Request) TableName() string {
	return "chat_requests"
}

func NewRequest(requester, requestee uuid.UUID, initialMessage string) (Request, error) {
	if requester == requestee {
		return Request{}, ErrSelfRequest
	}
	initialMessage = strings.TrimSpace(initialMessage)
	if utf8.RuneCountInString(initialMessage) > MaxInitialMessageLength {
		return Request{}, ErrInitialMessageTooLong
	}
	return Request{
		ID:             uuid.New(),
		RequesterID:    requester,
		RequesteeID:    requestee,
		InitialMessage: sql.NullString{String: initialMessage, Valid: initialMessage != ""},
		Status:         RequestPending,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
