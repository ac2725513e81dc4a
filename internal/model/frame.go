package model

import "encoding/json"

// Frame is the inbound message shape read from a client connection:
// a tagged variant {type, topic, payload} dispatched through the hub's
// handler table. Payload stays raw until the matched handler decodes it
// into its own request struct.
type Frame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
