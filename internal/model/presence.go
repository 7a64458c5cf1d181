// internal/model/presence.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "ONLINE"
	PresenceOffline PresenceStatus = "OFFLINE"
)

// UserPresence mirrors the in-memory online set into the database so the
// team roster and dashboard can show last-seen times without a socket.
type UserPresence struct {
	UserID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"userId"`
	WorkspaceID uuid.UUID      `gorm:"type:uuid;not null;index:idx_workspace_status" json:"workspaceId"`
	Status      PresenceStatus `gorm:"type:varchar(20);default:'ONLINE';index:idx_workspace_status" json:"status"`
	LastSeen    time.Time      `gorm:"autoCreateTime" json:"lastSeen"`
}

func (UserPresence) TableName() string {
	return "user_presence"
}

// WorkspaceMember is read-only here; the workspace service owns the table.
type WorkspaceMember struct {
	MemberID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"memberId"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index:idx_workspace_user" json:"workspaceId"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_workspace_user" json:"userId"`
	IsActive    bool      `gorm:"default:true" json:"isActive"`
}

func (WorkspaceMember) TableName() string {
	return "workspace_members"
}
