package hub

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

type annotationRequest struct {
	AnnotationID uuid.UUID              `json:"annotationId"`
	Kind         string                 `json:"kind,omitempty"`
	Geometry     map[string]interface{} `json:"geometry,omitempty"`
	Content      string                 `json:"content,omitempty"`
}

func (h *Hub) handleAnnotationCreate(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req annotationRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	refs := h.resolveRefs(topic)
	h.routeWithActivity(&model.Envelope{
		Event: "annotation.created",
		Payload: map[string]interface{}{
			"annotationId": req.AnnotationID.String(),
			"userId":       c.Identity.UserID.String(),
			"nickname":     c.Identity.Nickname,
			"kind":         req.Kind,
			"geometry":     req.Geometry,
			"content":      req.Content,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	}, refs)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		h.notify.Notify(ctx, client.NotificationEvent{
			Type:         client.NotificationAnnotationAdded,
			ActorID:      c.Identity.UserID,
			ResourceType: string(topic.Kind()),
			ResourceID:   topic.EntityID(),
			Title:        c.Identity.Nickname + " added an annotation",
			Metadata:     map[string]interface{}{"annotationId": req.AnnotationID.String()},
		})
	}()
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) handleAnnotationUpdate(c *Conn, frame *model.Frame) {
	h.relayAnnotation(c, frame, "annotation.updated", false)
}

func (h *Hub) handleAnnotationDelete(c *Conn, frame *model.Frame) {
	h.relayAnnotation(c, frame, "annotation.deleted", false)
}

// Resolving an annotation is meaningful beyond the image itself, so it
// expands to parent topics like creation does.
func (h *Hub) handleAnnotationResolve(c *Conn, frame *model.Frame) {
	h.relayAnnotation(c, frame, "annotation.resolved", true)
}

func (h *Hub) relayAnnotation(c *Conn, frame *model.Frame, outEvent string, expand bool) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req annotationRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	env := &model.Envelope{
		Event: outEvent,
		Payload: map[string]interface{}{
			"annotationId": req.AnnotationID.String(),
			"userId":       c.Identity.UserID.String(),
			"kind":         req.Kind,
			"geometry":     req.Geometry,
			"content":      req.Content,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	}

	if expand {
		h.routeWithActivity(env, h.resolveRefs(topic))
	} else {
		h.router.Route(env)
	}
	h.touchActivity(c.Identity.UserID)
}
