package model

import (
	"time"

	"github.com/google/uuid"
)

// UploadSession tracks an in-progress file transfer so topic members can
// render a progress bar. Bytes never transit this service; only progress
// counters do. Removed on complete/error or by the hourly sweep.
type UploadSession struct {
	SessionID string    `json:"sessionId"`
	UserID    uuid.UUID `json:"userId"`
	Topic     Topic     `json:"topic"`
	FileName  string    `json:"fileName"`
	TotalSize int64     `json:"totalSize"`
	BytesDone int64     `json:"bytesDone"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DrawingPoint is one sample of a freehand stroke.
type DrawingPoint struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure,omitempty"`
}

// DrawingSession buffers an in-progress stroke. Points are relayed to topic
// members as they arrive; the buffer exists to enforce ownership of
// appendPoints and to drive the swept-timeout safety net, not to
// reconstruct strokes server-side.
type DrawingSession struct {
	SessionID string         `json:"sessionId"`
	UserID    uuid.UUID      `json:"userId"`
	Topic     Topic          `json:"topic"`
	Tool      string         `json:"tool,omitempty"`
	Color     string         `json:"color,omitempty"`
	Width     float64        `json:"width,omitempty"`
	Points    []DrawingPoint `json:"points,omitempty"`
	StartedAt time.Time      `json:"startedAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
