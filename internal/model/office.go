// internal/model/office.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

type PlayerStatus string

const (
	PlayerStatusAvailable PlayerStatus = "AVAILABLE"
	PlayerStatusBusy      PlayerStatus = "BUSY"
	PlayerStatusAway      PlayerStatus = "AWAY"
	PlayerStatusInCall    PlayerStatus = "IN_CALL"
)

type InteractionType string

const (
	InteractionWave        InteractionType = "WAVE"
	InteractionCallRequest InteractionType = "CALL_REQUEST"
	InteractionInvite      InteractionType = "INVITE"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlayerState is the authoritative server-side view of one avatar in a
// workspace office room. Mutated only by events from that user's own
// connection.
type PlayerState struct {
	UserID      uuid.UUID    `json:"userId"`
	Name        string       `json:"name"`
	Email       string       `json:"email,omitempty"`
	AvatarColor string       `json:"avatarColor,omitempty"`
	Position    Position     `json:"position"`
	Direction   Direction    `json:"direction"`
	Status      PlayerStatus `json:"status"`
}

// ChatMessage is transient; the room keeps only a short ring buffer for
// late joiners, nothing is persisted.
type ChatMessage struct {
	SenderID   uuid.UUID  `json:"senderId"`
	SenderName string     `json:"senderName"`
	Message    string     `json:"message"`
	Position   Position   `json:"position"`
	TargetID   *uuid.UUID `json:"targetUserId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

type InteractionEvent struct {
	SenderID   uuid.UUID       `json:"senderId"`
	SenderName string          `json:"senderName"`
	Type       InteractionType `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
}
