package httpdto

import (
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// InitiateDirectRequest is used for POST /chat/initiate-direct
type InitiateDirectRequest struct {
	TargetUserID   string `json:"target_user_id" binding:"required,uuid"`
	InitialMessage string `json:"initial_message,omitempty" binding:"max=500"`
}

// CreateGroupRequest is used for POST /chat/rooms
type CreateGroupRequest struct {
	Name      string   `json:"name" binding:"max=100"`
	MemberIDs []string `json:"member_ids" binding:"required,min=1,dive,uuid"`
}

// SendMessageRequest is used for POST /chat/rooms/:room_id/messages
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=2000"`
}

// PageQuery holds limit/offset query parameters
type PageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

const (
	InitiateKindRoom    = "room"
	InitiateKindRequest = "request"
)

// InitiateDirectResponse carries either the room or the pending request.
type InitiateDirectResponse struct {
	Kind    string      `json:"kind"`
	Room    *RoomDTO    `json:"room,omitempty"`
	Request *RequestDTO `json:"request,omitempty"`
	IsNew   bool        `json:"is_new"`
}

type LastMessageDTO struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
	SentAt   string `json:"sent_at"`
}

// RoomDTO represents a chat room in API responses and pushes
type RoomDTO struct {
	ID             string          `json:"id"`
	IsGroup        bool            `json:"is_group"`
	Name           string          `json:"name,omitempty"`
	ParticipantIDs []string        `json:"participant_ids"`
	LastMessage    *LastMessageDTO `json:"last_message,omitempty"`
	HasUnread      bool            `json:"has_unread"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

type MessageDTO struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type RequestDTO struct {
	ID             string `json:"id"`
	RequesterID    string `json:"requester_id"`
	RequesteeID    string `json:"requestee_id"`
	InitialMessage string `json:"initial_message,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
	RespondedAt    string `json:"responded_at,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FromRoom converts a room as seen by viewer. A nil viewer leaves HasUnread false.
func FromRoom(r chat.Room, viewer uuid.UUID) RoomDTO {
	dto := RoomDTO{
		ID:      r.ID.String(),
		IsGroup: r.IsGroup,
		ParticipantIDs: lo.Map(r.ParticipantIDs(), func(id uuid.UUID, _ int) string {
			return id.String()
		}),
		CreatedAt: formatTime(r.CreatedAt),
		UpdatedAt: formatTime(r.UpdatedAt),
	}
	if r.Name.Valid {
		dto.Name = r.Name.String
	}
	if r.LastMessage.Present() {
		dto.LastMessage = &LastMessageDTO{
			ID:       r.LastMessage.ID.UUID.String(),
			SenderID: r.LastMessage.SenderID.UUID.String(),
			Content:  r.LastMessage.Content.String,
			SentAt:   formatTime(r.LastMessage.SentAt.Time),
		}
	}
	if viewer != uuid.Nil {
		dto.HasUnread = r.HasUnread(viewer)
	}
	return dto
}

func FromRooms(rooms []chat.Room, viewer uuid.UUID) []RoomDTO {
	return lo.Map(rooms, func(r chat.Room, _ int) RoomDTO {
		return FromRoom(r, viewer)
	})
}

func FromMessage(m chat.Message) MessageDTO {
	return MessageDTO{
		ID:        m.ID.String(),
		RoomID:    m.RoomID.String(),
		SenderID:  m.SenderID.String(),
		Content:   m.Content,
		CreatedAt: formatTime(m.CreatedAt),
	}
}

func FromMessages(msgs []chat.Message) []MessageDTO {
	return lo.Map(msgs, func(m chat.Message, _ int) MessageDTO {
		return FromMessage(m)
	})
}

func FromRequest(r chat.Request) RequestDTO {
	dto := RequestDTO{
		ID:          r.ID.String(),
		RequesterID: r.RequesterID.String(),
		RequesteeID: r.RequesteeID.String(),
		Status:      string(r.Status),
		CreatedAt:   formatTime(r.CreatedAt),
	}
	if r.InitialMessage.Valid {
		dto.InitialMessage = r.InitialMessage.String
	}
	if r.RespondedAt.Valid {
		dto.RespondedAt = formatTime(r.RespondedAt.Time)
	}
	return dto
}

func FromRequests(reqs []chat.Request) []RequestDTO {
	return lo.Map(reqs, func(r chat.Request, _ int) RequestDTO {
		return FromRequest(r)
	})
}
