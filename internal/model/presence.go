package model

import (
	"time"

	"github.com/google/uuid"
)

// PresenceStatus defines user presence status.
type PresenceStatus string

const (
	PresenceActive  PresenceStatus = "ACTIVE"
	PresenceIdle    PresenceStatus = "IDLE"
	PresenceAway    PresenceStatus = "AWAY"
	PresenceOffline PresenceStatus = "OFFLINE"
)

// Location is where a user is currently looking inside the project hierarchy.
type Location struct {
	ProjectID *uuid.UUID `json:"projectId,omitempty"`
	SceneID   *uuid.UUID `json:"sceneId,omitempty"`
	ImageID   *uuid.UUID `json:"imageId,omitempty"`
}

// CursorState is topic-scoped advisory cursor position, last-write-wins.
type CursorState struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Tool      string    `json:"tool,omitempty"`
	Color     string    `json:"color,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ViewportState is topic-scoped advisory viewport, last-write-wins.
type ViewportState struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Zoom      float64   `json:"zoom"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserPresence is the ephemeral per-identity record held by the tracker.
// It exists from the identity's first connection until its last connection
// disconnects; it is never a durable source of truth.
type UserPresence struct {
	Identity      Identity       `json:"identity"`
	Status        PresenceStatus `json:"status"`
	Location      Location       `json:"location"`
	Tool          string         `json:"tool,omitempty"`
	Color         string         `json:"color,omitempty"`
	IsTyping      bool           `json:"isTyping"`
	TypingContext string         `json:"typingContext,omitempty"`
	LastActivity  time.Time      `json:"lastActivity"`
	ConnectedAt   time.Time      `json:"connectedAt"`
}

// PresenceMirror is the advisory durable mirror of presence status.
// Written fire-and-forget on status transitions; never read back by the hub.
type PresenceMirror struct {
	UserID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"userId"`
	Status       PresenceStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	ProjectID    *uuid.UUID     `gorm:"type:uuid;index" json:"projectId,omitempty"`
	LastActivity time.Time      `gorm:"not null" json:"lastActivity"`
}

func (PresenceMirror) TableName() string {
	return "user_presence"
}
