package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Availability controls who may open a direct chat with a user.
type Availability string

const (
	AvailabilityOpen         Availability = "OPEN"
	AvailabilityRequestOnly  Availability = "REQUEST_ONLY"
	AvailabilityDoNotDisturb Availability = "DO_NOT_DISTURB"
)

func (a Availability) Valid() bool {
	switch a {
	case AvailabilityOpen, AvailabilityRequestOnly, AvailabilityDoNotDisturb:
		return true
	}
	return false
}

// ParseAvailability accepts the canonical names case-insensitively.
func ParseAvailability(s string) (Availability, error) {
	a := Availability(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown chat availability %q", s)
	}
	return a, nil
}

// User represents the users table. It is owned by the profile service; this
// service only reads it.
type User struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey"`
	Username         string       `gorm:"uniqueIndex;not null"`
	IsActive         bool         `gorm:"not null;default:true"`
	ChatAvailability Availability `gorm:"type:varchar(32);not null;default:OPEN"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (User) TableName() string {
	return "users"
}

func NewUser(username string, availability Availability) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("username is required")
	}
	if availability == "" {
		availability = AvailabilityOpen
	}
	if !availability.Valid() {
		return User{}, fmt.Errorf("unknown chat availability %q", availability)
	}
	now := time.Now().UTC()
	return User{
		ID:               uuid.New(),
		Username:         username,
		IsActive:         true,
		ChatAvailability: availability,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

type RelationshipType string

const (
	RelationshipMute  RelationshipType = "MUTE"
	RelationshipBlock RelationshipType = "BLOCK"
)

// Relationship is a directed edge from Actor to Target. At most one edge
// exists per (actor, target, type).
type Relationship struct {
	ActorID   uuid.UUID        `gorm:"type:uuid;primaryKey"`
	TargetID  uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Type      RelationshipType `gorm:"type:varchar(16);primaryKey"`
	CreatedAt time.Time
}

func (Relationship) TableName() string {
	return "user_relationships"
}

func NewRelationship(actor, target uuid.UUID, t RelationshipType) (Relationship, error) {
	if actor == target {
		return Relationship{}, fmt.Errorf("relationship with self")
	}
	if t != RelationshipMute && t != RelationshipBlock {
		return Relationship{}, fmt.Errorf("unknown relationship type %q", t)
	}
	return Relationship{ActorID: actor, TargetID: target, Type: t, CreatedAt: time.Now().UTC()}, nil
}
