package hub

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

type friendRequest struct {
	TargetUserID uuid.UUID `json:"targetUserId"`
	RequestID    uuid.UUID `json:"requestId,omitempty"`
}

func (h *Hub) handleFriendRequest(c *Conn, frame *model.Frame) {
	var req friendRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.routeDirect(c, req.TargetUserID, "friend_request", map[string]interface{}{
		"requestId": req.RequestID.String(),
		"userId":    c.Identity.UserID.String(),
		"nickname":  c.Identity.Nickname,
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		h.notify.Notify(ctx, client.NotificationEvent{
			Type:         client.NotificationFriendRequest,
			ActorID:      c.Identity.UserID,
			TargetUserID: req.TargetUserID,
			Title:        c.Identity.Nickname + " sent you a friend request",
		})
	}()
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) handleFriendAccepted(c *Conn, frame *model.Frame) {
	var req friendRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.routeDirect(c, req.TargetUserID, "friend_request_accepted", map[string]interface{}{
		"userId":   c.Identity.UserID.String(),
		"nickname": c.Identity.Nickname,
	})
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) handleFriendRemoved(c *Conn, frame *model.Frame) {
	var req friendRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.routeDirect(c, req.TargetUserID, "friend_removed", map[string]interface{}{
		"userId": c.Identity.UserID.String(),
	})
}

// handleFriendStatusQuery answers from live presence only. Users without a
// tracker entry are reported offline; the hub does not consult the durable
// mirror.
func (h *Hub) handleFriendStatusQuery(c *Conn, frame *model.Frame) {
	var req struct {
		UserIDs []uuid.UUID `json:"userIds"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	statuses := make(map[string]model.PresenceStatus, len(req.UserIDs))
	for _, id := range req.UserIDs {
		status := model.PresenceOffline
		if snapshot, ok := h.tracker.Snapshot(id); ok {
			status = snapshot.Status
		}
		statuses[id.String()] = status
	}

	h.respond(c, "friend_statuses", map[string]interface{}{"statuses": statuses})
}

type directMessageRequest struct {
	TargetUserID uuid.UUID `json:"targetUserId"`
	MessageID    uuid.UUID `json:"messageId,omitempty"`
	Content      string    `json:"content,omitempty"`
}

func (h *Hub) handleDirectMessage(c *Conn, frame *model.Frame) {
	var req directMessageRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}
	if req.Content == "" {
		h.sendError(c, frame.Type, ErrValidation, "content required")
		return
	}

	payload := map[string]interface{}{
		"messageId": req.MessageID.String(),
		"userId":    c.Identity.UserID.String(),
		"nickname":  c.Identity.Nickname,
		"content":   req.Content,
	}
	h.routeDirect(c, req.TargetUserID, "direct_message", payload)

	// The sender's other tabs learn of the message the same way the
	// recipient does.
	h.router.Route(&model.Envelope{
		Event:      "direct_message",
		Payload:    payload,
		Mode:       model.DirectToIdentity,
		TargetUser: c.Identity.UserID,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		h.notify.Notify(ctx, client.NotificationEvent{
			Type:         client.NotificationDirectMessage,
			ActorID:      c.Identity.UserID,
			TargetUserID: req.TargetUserID,
			Title:        c.Identity.Nickname,
			Body:         req.Content,
		})
	}()
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) handleMessageMarkRead(c *Conn, frame *model.Frame) {
	var req struct {
		TargetUserID uuid.UUID   `json:"targetUserId"`
		MessageIDs   []uuid.UUID `json:"messageIds"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	ids := make([]string, 0, len(req.MessageIDs))
	for _, id := range req.MessageIDs {
		ids = append(ids, id.String())
	}
	h.routeDirect(c, req.TargetUserID, "messages_read", map[string]interface{}{
		"userId":     c.Identity.UserID.String(),
		"messageIds": ids,
	})
}

func (h *Hub) handleDirectTypingStart(c *Conn, frame *model.Frame) {
	h.relayDirectTyping(c, frame, "direct_typing")
}

func (h *Hub) handleDirectTypingStop(c *Conn, frame *model.Frame) {
	h.relayDirectTyping(c, frame, "direct_typing_stopped")
}

// Direct typing is point-to-point and untracked: no room membership exists
// to sweep, and a lost stop costs one stale indicator on one screen.
func (h *Hub) relayDirectTyping(c *Conn, frame *model.Frame, event string) {
	var req struct {
		TargetUserID uuid.UUID `json:"targetUserId"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.routeDirect(c, req.TargetUserID, event, map[string]interface{}{
		"userId":   c.Identity.UserID.String(),
		"nickname": c.Identity.Nickname,
	})
}

// handleMessageHistory acknowledges the request with a pointer to the
// durable store. The hub holds no message history; clients page through
// chat-service's REST API and use this only to learn the cutoff.
func (h *Hub) handleMessageHistory(c *Conn, frame *model.Frame) {
	var req struct {
		TargetUserID uuid.UUID `json:"targetUserId"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.respond(c, "message_history", map[string]interface{}{
		"with":     req.TargetUserID.String(),
		"messages": []interface{}{},
		"asOf":     h.clock.Now(),
	})
}

// routeDirect wraps the direct-to-identity envelope plumbing shared by the
// social handlers. An offline target receives nothing here; notifications
// carry the durable signal.
func (h *Hub) routeDirect(c *Conn, target uuid.UUID, event string, payload map[string]interface{}) {
	h.router.Route(&model.Envelope{
		Event:      event,
		Payload:    payload,
		Mode:       model.DirectToIdentity,
		TargetUser: target,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
}
