// internal/model/events.go
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Client -> server event types.
const (
	EventUserConnect       = "user:connect"
	EventUserHeartbeat     = "user:heartbeat"
	EventOfficeJoin        = "office:join"
	EventOfficeMove        = "office:move"
	EventOfficeStatus      = "office:status"
	EventOfficeChat        = "office:chat"
	EventOfficeInteraction = "office:interaction"
	EventOfficeLeave       = "office:leave"
)

// Server -> client event types.
const (
	EventOnlineUsers         = "online:users"
	EventUserOnline          = "user:online"
	EventUserOffline         = "user:offline"
	EventOfficePlayers       = "office:players"
	EventPlayerJoined        = "office:player-joined"
	EventPlayerLeft          = "office:player-left"
	EventPlayerMoved         = "office:player-moved"
	EventPlayerStatus        = "office:player-status"
	EventProximity           = "office:proximity"
	EventChatMessage         = "office:chat-message"
	EventInteractionReceived = "office:interaction-received"
)

// Envelope is the wire frame for every websocket event in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals a server->client event. Payloads are plain structs so a
// marshal failure is a programming error; callers treat nil as "skip".
func NewEvent(eventType string, payload interface{}) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	data, err := json.Marshal(Envelope{Type: eventType, Payload: body})
	if err != nil {
		return nil
	}
	return data
}

// Client -> server payloads.

type ConnectPayload struct {
	UserID      uuid.UUID `json:"userId"`
	WorkspaceID uuid.UUID `json:"workspaceId"`
}

type HeartbeatPayload struct {
	UserID uuid.UUID `json:"userId"`
}

type JoinPayload struct {
	WorkspaceID uuid.UUID `json:"workspaceId"`
	UserID      uuid.UUID `json:"userId"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	AvatarColor string    `json:"avatarColor,omitempty"`
}

type MovePayload struct {
	WorkspaceID uuid.UUID `json:"workspaceId"`
	UserID      uuid.UUID `json:"userId"`
	Position    Position  `json:"position"`
	Direction   Direction `json:"direction"`
}

type StatusPayload struct {
	WorkspaceID uuid.UUID    `json:"workspaceId"`
	UserID      uuid.UUID    `json:"userId"`
	Status      PlayerStatus `json:"status"`
}

type ChatPayload struct {
	WorkspaceID  uuid.UUID  `json:"workspaceId"`
	UserID       uuid.UUID  `json:"userId"`
	Message      string     `json:"message"`
	TargetUserID *uuid.UUID `json:"targetUserId,omitempty"`
}

type InteractionPayload struct {
	WorkspaceID  uuid.UUID       `json:"workspaceId"`
	UserID       uuid.UUID       `json:"userId"`
	TargetUserID uuid.UUID       `json:"targetUserId"`
	Type         InteractionType `json:"type"`
}

type LeavePayload struct {
	WorkspaceID uuid.UUID `json:"workspaceId"`
	UserID      uuid.UUID `json:"userId"`
}

// Server -> client payloads.

type OnlineUsersPayload struct {
	Users []uuid.UUID `json:"users"`
}

type UserStatusPayload struct {
	UserID uuid.UUID `json:"userId"`
}

type PlayersPayload struct {
	Players []PlayerState `json:"players"`
}

type PlayerLeftPayload struct {
	UserID uuid.UUID `json:"userId"`
}

type PlayerMovedPayload struct {
	PlayerID  uuid.UUID `json:"playerId"`
	Position  Position  `json:"position"`
	Direction Direction `json:"direction"`
}

type PlayerStatusPayload struct {
	PlayerID uuid.UUID    `json:"playerId"`
	Status   PlayerStatus `json:"status"`
}

type ProximityType string

const (
	ProximityEnter ProximityType = "enter"
	ProximityExit  ProximityType = "exit"
)

type ProximityPayload struct {
	PlayerID      uuid.UUID     `json:"playerId"`
	NearbyPlayers []uuid.UUID   `json:"nearbyPlayers"`
	Type          ProximityType `json:"type"`
}

type ChatMessagePayload struct {
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	Position   Position  `json:"position"`
	Timestamp  time.Time `json:"timestamp"`
}

type InteractionReceivedPayload struct {
	SenderID   uuid.UUID       `json:"senderId"`
	SenderName string          `json:"senderName"`
	Type       InteractionType `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
}
