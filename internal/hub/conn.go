package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Conn is one live client connection. Identity is attached by the gateway
// during the handshake and immutable afterwards.
type Conn struct {
	ID       uuid.UUID
	Identity model.Identity

	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	mu     sync.Mutex
	topics map[model.Topic]struct{}

	sendMu    sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, identity model.Identity, h *Hub) *Conn {
	return &Conn{
		ID:       uuid.New(),
		Identity: identity,
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		hub:      h,
		topics:   make(map[model.Topic]struct{}),
	}
}

// Enqueue queues bytes for delivery. Non-blocking: returns false when the
// connection is already closed or the client's send buffer is full, in
// which case the delivery is dropped (best-effort semantics) and the
// caller may count it. The closed check and the send happen under one
// lock so a concurrent close can never turn a routed delivery into a send
// on a closed channel.
func (c *Conn) Enqueue(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// EnqueueEnvelope serializes and queues an envelope for this connection.
func (c *Conn) EnqueueEnvelope(env *model.Envelope) bool {
	payload, err := env.Encode()
	if err != nil {
		return false
	}
	return c.Enqueue(payload)
}

func (c *Conn) trackJoin(topic model.Topic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics[topic] = struct{}{}
}

func (c *Conn) trackLeave(topic model.Topic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

func (c *Conn) joined(topic model.Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.topics[topic]
	return ok
}

func (c *Conn) joinedTopics() []model.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Topic, 0, len(c.topics))
	for topic := range c.topics {
		out = append(out, topic)
	}
	return out
}

// readPump reads frames in receipt order and dispatches them through the
// hub's handler table. Runs as the connection's single reader goroutine.
func (c *Conn) readPump() {
	defer func() {
		c.hub.teardown(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket closed unexpectedly",
					zap.String("conn_id", c.ID.String()),
					zap.Error(err))
			}
			break
		}

		var frame model.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.hub.sendError(c, "", ErrValidation, "malformed frame")
			continue
		}

		c.hub.dispatch(c, &frame)
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings. Runs as the connection's single writer goroutine.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
	})
}
