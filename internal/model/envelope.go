package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeliveryMode selects how the router resolves an envelope's recipients.
type DeliveryMode int

const (
	// BroadcastExcludeOrigin delivers to every connection in the target
	// topics except the originating connection. Other connections of the
	// originating identity still receive it.
	BroadcastExcludeOrigin DeliveryMode = iota
	// BroadcastIncludeOrigin delivers to every connection in the target
	// topics, the origin included.
	BroadcastIncludeOrigin
	// DirectToIdentity delivers to every live connection of a single
	// identity, regardless of topic membership.
	DirectToIdentity
)

// Envelope is the unit of routed real-time data. Constructed by a domain
// handler, consumed once by the router, never persisted.
type Envelope struct {
	Event      string       `json:"event"`
	Payload    interface{}  `json:"payload,omitempty"`
	Topics     []Topic      `json:"-"`
	Mode       DeliveryMode `json:"-"`
	OriginUser uuid.UUID    `json:"-"`
	OriginConn uuid.UUID    `json:"-"`
	// Target identity for DirectToIdentity mode.
	TargetUser uuid.UUID `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
}

// wireFrame is the JSON shape written to client connections.
type wireFrame struct {
	Event     string      `json:"event"`
	Topic     string      `json:"topic,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Encode serializes the envelope for delivery. The topic recorded on the
// wire is the first target topic; peers joined via parent topics receive
// the same bytes.
func (e *Envelope) Encode() ([]byte, error) {
	frame := wireFrame{
		Event:     e.Event,
		Payload:   e.Payload,
		Timestamp: e.Timestamp,
	}
	if len(e.Topics) > 0 {
		frame.Topic = e.Topics[0].String()
	}
	return json.Marshal(frame)
}
