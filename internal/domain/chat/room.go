package chat

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDirectRoomSize  = errors.New("direct chat rooms must have exactly two distinct participants")
	ErrGroupRoomSize   = errors.New("group chat rooms need at least two participants")
	ErrRoomNameTooLong = errors.New("room name exceeds 100 characters")
)

const MaxRoomNameLength = 100

// Room represents the chat_rooms table.
type Room struct {
	ID      uuid.UUID      `gorm:"type:uuid;primaryKey"`
	IsGroup bool           `gorm:"not null;default:false"`
	Name    sql.NullString `gorm:"type:varchar(100)"`
	// DirectKey is set only for direct rooms and carries a unique index, so a
	// pair of users can never end up with two direct rooms.
	DirectKey   sql.NullString `gorm:"type:varchar(80);uniqueIndex"`
	LastMessage LastMessage    `gorm:"embedded;embeddedPrefix:last_message_"`
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null;index"`

	Participants []Participant `gorm:"foreignKey:RoomID"`
}

func (Room) TableName() string {
	return "chat_rooms"
}

// Participant represents the chat_room_participants table.
type Participant struct {
	RoomID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	JoinedAt   time.Time `gorm:"not null"`
	LastReadAt sql.NullTime
}

func (Participant) TableName() string {
	return "chat_room_participants"
}

// LastMessage is a denormalized summary of the newest message in a room. It
// is a cache; the message log is authoritative.
type LastMessage struct {
	ID       uuid.NullUUID `gorm:"type:uuid"`
	SenderID uuid.NullUUID `gorm:"type:uuid"`
	Content  sql.NullString
	SentAt   sql.NullTime
}

func (l LastMessage) Present() bool {
	return l.ID.Valid
}

func SummaryOf(m Message) LastMessage {
	return LastMessage{
		ID:       uuid.NullUUID{UUID: m.ID, Valid: true},
		SenderID: uuid.NullUUID{UUID: m.SenderID, Valid: true},
		Content:  sql.NullString{String: m.Content, Valid: true},
		SentAt:   sql.NullTime{Time: m.CreatedAt, Valid: true},
	}
}

// DirectKey returns the order-independent key of a user pair.
func DirectKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// NewDirectRoom builds an unsaved direct room for two distinct users.
func NewDirectRoom(a, b uuid.UUID) (Room, error) {
	if a == b || a == uuid.Nil || b == uuid.Nil {
		return Room{}, ErrDirectRoomSize
	}
	now := time.Now().UTC()
	id := uuid.New()
	return Room{
		ID:        id,
		IsGroup:   false,
		DirectKey: sql.NullString{String: DirectKey(a, b), Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
		Participants: []Participant{
			{RoomID: id, UserID: a, JoinedAt: now},
			{RoomID: id, UserID: b, JoinedAt: now},
		},
	}, nil
}

// NewGroupRoom builds an unsaved group room. Duplicate members are collapsed.
func NewGroupRoom(name string, creator uuid.UUID, members []uuid.UUID) (Room, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) > MaxRoomNameLength {
		return Room{}, ErrRoomNameTooLong
	}
	seen := map[uuid.UUID]struct{}{creator: {}}
	ids := []uuid.UUID{creator}
	for _, m := range members {
		if _, ok := seen[m]; ok || m == uuid.Nil {
			continue
		}
		seen[m] = struct{}{}
		ids = append(ids, m)
	}
	if len(ids) < 2 {
		return Room{}, ErrGroupRoomSize
	}
	now := time.Now().UTC()
	id := uuid.New()
	room := Room{
		ID:        id,
		IsGroup:   true,
		Name:      sql.NullString{String: name, Valid: name != ""},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, uid := range ids {
		room.Participants = append(room.Participants, Participant{RoomID: id, UserID: uid, JoinedAt: now})
	}
	return room, nil
}

func (r Room) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Participants))
	for _, p := range r.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

func (r Room) HasParticipant(userID uuid.UUID) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// IsDirect reports whether the room is a two-person non-group room.
func (r Room) IsDirect() bool {
	return !r.IsGroup && len(r.Participants) == 2
}

// Counterpart returns the other member of a direct room.
func (r Room) Counterpart(userID uuid.UUID) (uuid.UUID, bool) {
	if !r.IsDirect() {
		return uuid.Nil, false
	}
	for _, p := range r.Participants {
		if p.UserID != userID {
			return p.UserID, true
		}
	}
	return uuid.Nil, false
}

// HasUnread reports whether the newest message was sent by someone else after
// userID last marked the room read.
func (r Room) HasUnread(userID uuid.UUID) bool {
	if !r.LastMessage.Present() || r.LastMessage.SenderID.UUID == userID {
		return false
	}
	for _, p := range r.Participants {
		if p.UserID == userID {
			return !p.LastReadAt.Valid || p.LastReadAt.Time.Before(r.LastMessage.SentAt.Time)
		}
	}
	return false
}
