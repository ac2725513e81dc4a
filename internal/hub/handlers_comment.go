package hub

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

type commentRequest struct {
	CommentID uuid.UUID   `json:"commentId"`
	ParentID  *uuid.UUID  `json:"parentId,omitempty"`
	Content   string      `json:"content,omitempty"`
	Mentions  []uuid.UUID `json:"mentions,omitempty"`
	Emoji     string      `json:"emoji,omitempty"`
	Added     bool        `json:"added,omitempty"`
}

func (h *Hub) handleCommentCreate(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req commentRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	refs := h.resolveRefs(topic)
	h.routeWithActivity(&model.Envelope{
		Event: "comment.created",
		Payload: map[string]interface{}{
			"commentId": req.CommentID.String(),
			"parentId":  uuidString(req.ParentID),
			"userId":    c.Identity.UserID.String(),
			"nickname":  c.Identity.Nickname,
			"content":   req.Content,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	}, refs)

	h.notifyComment(c.Identity, topic, req)
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) handleCommentUpdate(c *Conn, frame *model.Frame) {
	h.relayComment(c, frame, "comment.updated")
}

func (h *Hub) handleCommentDelete(c *Conn, frame *model.Frame) {
	h.relayComment(c, frame, "comment.deleted")
}

func (h *Hub) handleCommentReact(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req commentRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.router.Route(&model.Envelope{
		Event: "comment.reacted",
		Payload: map[string]interface{}{
			"commentId": req.CommentID.String(),
			"userId":    c.Identity.UserID.String(),
			"emoji":     req.Emoji,
			"added":     req.Added,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
	h.touchActivity(c.Identity.UserID)
}

// relayComment covers edit and delete: topic-scoped relay with no parent
// expansion and no notification. Only comment.created is activity-worthy.
func (h *Hub) relayComment(c *Conn, frame *model.Frame, outEvent string) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req commentRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.router.Route(&model.Envelope{
		Event: outEvent,
		Payload: map[string]interface{}{
			"commentId": req.CommentID.String(),
			"userId":    c.Identity.UserID.String(),
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

// notifyComment sends the participant fan-out notification plus one direct
// notification per mentioned user.
func (h *Hub) notifyComment(actor model.Identity, topic model.Topic, req commentRequest) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()

		h.notify.Notify(ctx, client.NotificationEvent{
			Type:         client.NotificationCommentAdded,
			ActorID:      actor.UserID,
			ResourceType: string(topic.Kind()),
			ResourceID:   topic.EntityID(),
			Title:        actor.Nickname + " commented",
			Body:         req.Content,
			Metadata:     map[string]interface{}{"commentId": req.CommentID.String()},
		})

		for _, mentioned := range req.Mentions {
			if mentioned == actor.UserID {
				continue
			}
			h.notify.Notify(ctx, client.NotificationEvent{
				Type:         client.NotificationCommentMentioned,
				ActorID:      actor.UserID,
				TargetUserID: mentioned,
				Title:        actor.Nickname + " mentioned you",
				Body:         req.Content,
				Metadata:     map[string]interface{}{"commentId": req.CommentID.String()},
			})
		}
	}()
}
