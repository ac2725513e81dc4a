package hub

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// requireChannelTopic rejects frames whose topic is not a channel. The
// channel family shares the generic join/leave machinery but must not be
// usable to smuggle joins into other topic kinds.
func (h *Hub) requireChannelTopic(c *Conn, frame *model.Frame) (model.Topic, bool) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return "", false
	}
	if topic.Kind() != model.TopicChannel {
		h.sendError(c, frame.Type, ErrValidation, "channel topic required")
		return "", false
	}
	return topic, true
}

func (h *Hub) handleChannelJoin(c *Conn, frame *model.Frame) {
	if _, ok := h.requireChannelTopic(c, frame); !ok {
		return
	}
	h.handleJoin(c, frame)
}

func (h *Hub) handleChannelLeave(c *Conn, frame *model.Frame) {
	if _, ok := h.requireChannelTopic(c, frame); !ok {
		return
	}
	h.handleLeave(c, frame)
}

func (h *Hub) handleChannelMessage(c *Conn, frame *model.Frame) {
	topic, ok := h.requireChannelTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req struct {
		MessageID uuid.UUID `json:"messageId"`
		Content   string    `json:"content"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}
	if req.Content == "" {
		h.sendError(c, frame.Type, ErrValidation, "content required")
		return
	}

	// Include-origin so every tab of the sender renders the message once,
	// from the same authoritative envelope.
	h.router.Route(&model.Envelope{
		Event: "channel_message",
		Payload: map[string]interface{}{
			"messageId": req.MessageID.String(),
			"channelId": topic.EntityID().String(),
			"userId":    c.Identity.UserID.String(),
			"nickname":  c.Identity.Nickname,
			"content":   req.Content,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) handleChannelInvite(c *Conn, frame *model.Frame) {
	topic, ok := h.requireChannelTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req struct {
		TargetUserID uuid.UUID `json:"targetUserId"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.router.Route(&model.Envelope{
		Event: "channel_invite",
		Payload: map[string]interface{}{
			"channelId": topic.EntityID().String(),
			"inviterId": c.Identity.UserID.String(),
			"nickname":  c.Identity.Nickname,
		},
		Mode:       model.DirectToIdentity,
		TargetUser: req.TargetUserID,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		h.notify.Notify(ctx, client.NotificationEvent{
			Type:         client.NotificationChannelInvite,
			ActorID:      c.Identity.UserID,
			TargetUserID: req.TargetUserID,
			Title:        c.Identity.Nickname + " invited you to a channel",
			Metadata:     map[string]interface{}{"channelId": topic.EntityID().String()},
		})
	}()
	h.touchActivity(c.Identity.UserID)
}

// handleChannelAcceptInvite announces the acceptance to the channel. The
// membership change itself happened through the REST API; the accepter
// still joins the live topic with a separate channel.join.
func (h *Hub) handleChannelAcceptInvite(c *Conn, frame *model.Frame) {
	topic, ok := h.requireChannelTopic(c, frame)
	if !ok {
		return
	}

	h.router.Route(&model.Envelope{
		Event: "channel_invite_accepted",
		Payload: map[string]interface{}{
			"channelId": topic.EntityID().String(),
			"userId":    c.Identity.UserID.String(),
			"nickname":  c.Identity.Nickname,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
	h.touchActivity(c.Identity.UserID)
}
