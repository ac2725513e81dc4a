package hub

import (
	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

func (h *Hub) handleUpdateStatus(c *Conn, frame *model.Frame) {
	var req struct {
		Status model.PresenceStatus `json:"status"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	switch req.Status {
	case model.PresenceActive, model.PresenceIdle, model.PresenceAway:
	default:
		h.sendError(c, frame.Type, ErrValidation, "invalid status")
		return
	}

	tr := h.tracker.SetStatus(c.Identity.UserID, req.Status)
	h.respond(c, "presence_updated", map[string]interface{}{
		"userId": c.Identity.UserID.String(),
		"status": req.Status,
	})
	h.broadcastTransition(tr)
}

func (h *Hub) handleSetLocation(c *Conn, frame *model.Frame) {
	var req model.Location
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	tr := h.tracker.SetLocation(c.Identity.UserID, req)
	h.broadcastTransition(tr)

	topics := h.registry.TopicsOf(c.Identity.UserID)
	if len(topics) == 0 {
		return
	}
	h.router.Route(&model.Envelope{
		Event: "presence_updated",
		Payload: map[string]interface{}{
			"userId":     c.Identity.UserID.String(),
			"location":   req,
			"changeType": "location_changed",
		},
		Topics:     topics,
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
}

func (h *Hub) handleCursorMove(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req struct {
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		Tool  string  `json:"tool,omitempty"`
		Color string  `json:"color,omitempty"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	tr := h.tracker.SetCursor(topic, c.Identity.UserID, req.X, req.Y, req.Tool, req.Color)
	h.broadcastTransition(tr)

	// High-frequency advisory traffic: broadcast to the topic only, never
	// expanded to parent topics, no success envelope back.
	h.router.Route(&model.Envelope{
		Event: "cursor_moved",
		Payload: map[string]interface{}{
			"userId": c.Identity.UserID.String(),
			"x":      req.X,
			"y":      req.Y,
			"tool":   req.Tool,
			"color":  req.Color,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
}

func (h *Hub) handleViewportChange(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Zoom float64 `json:"zoom"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	tr := h.tracker.SetViewport(topic, c.Identity.UserID, req.X, req.Y, req.Zoom)
	h.broadcastTransition(tr)

	h.router.Route(&model.Envelope{
		Event: "viewport_changed",
		Payload: map[string]interface{}{
			"userId": c.Identity.UserID.String(),
			"x":      req.X,
			"y":      req.Y,
			"zoom":   req.Zoom,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
}

type typingRequest struct {
	Context string `json:"context,omitempty"`
}

func (h *Hub) handleTypingStart(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req typingRequest
	if len(frame.Payload) > 0 {
		if err := decode(frame, &req); err != nil {
			h.sendError(c, frame.Type, err, "")
			return
		}
	}

	started, tr := h.tracker.StartTyping(topic, req.Context, c.Identity.UserID)
	h.broadcastTransition(tr)

	// Repeat starts refresh the timeout silently; peers already know.
	if !started {
		return
	}
	h.router.Route(h.typingEnvelope("user_typing", topic, req.Context, c))
}

func (h *Hub) handleTypingStop(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}

	var req typingRequest
	if len(frame.Payload) > 0 {
		if err := decode(frame, &req); err != nil {
			h.sendError(c, frame.Type, err, "")
			return
		}
	}

	if !h.tracker.StopTyping(topic, req.Context, c.Identity.UserID) {
		return
	}
	h.router.Route(h.typingEnvelope("typing_stopped", topic, req.Context, c))
}

func (h *Hub) typingEnvelope(event string, topic model.Topic, context string, c *Conn) *model.Envelope {
	return &model.Envelope{
		Event: event,
		Payload: map[string]interface{}{
			"userId":   c.Identity.UserID.String(),
			"nickname": c.Identity.Nickname,
			"context":  context,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	}
}

// typingStoppedEnvelope is the sweep-driven variant: no origin connection
// exists, so the stop reaches every member including the stale typist's
// own tabs.
func (h *Hub) typingStoppedEnvelope(exp TypingExpiry) *model.Envelope {
	return &model.Envelope{
		Event: "typing_stopped",
		Payload: map[string]interface{}{
			"userId":  exp.UserID.String(),
			"context": exp.Context,
			"reason":  "timeout",
		},
		Topics:     []model.Topic{exp.Topic},
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: exp.UserID,
		OriginConn: uuid.Nil,
		Timestamp:  h.clock.Now(),
	}
}
