package model

import "github.com/google/uuid"

// Identity is the authenticated principal attached to a connection.
// Immutable for the connection's lifetime; one identity may own several
// simultaneous connections (multi-tab, multi-device).
type Identity struct {
	UserID          uuid.UUID `json:"userId"`
	Nickname        string    `json:"nickname"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	IsAdmin         bool      `json:"isAdmin"`
}
