package hub

import (
	"context"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// handleSceneEvent builds the handler for one scene lifecycle event. The
// whole family shares its shape: relay on the scene (or project) topic,
// expand to the project activity feed, notify participants.
func (h *Hub) handleSceneEvent(outEvent string) handlerFunc {
	return func(c *Conn, frame *model.Frame) {
		topic, ok := h.parseFrameTopic(c, frame)
		if !ok {
			return
		}
		if !h.requireJoined(c, frame, topic) {
			return
		}

		var payload map[string]interface{}
		if len(frame.Payload) > 0 {
			if err := decode(frame, &payload); err != nil {
				h.sendError(c, frame.Type, err, "")
				return
			}
		}
		if payload == nil {
			payload = make(map[string]interface{})
		}
		payload["userId"] = c.Identity.UserID.String()

		refs := h.resolveRefs(topic)
		h.routeWithActivity(&model.Envelope{
			Event:      outEvent,
			Payload:    payload,
			Topics:     []model.Topic{topic},
			Mode:       model.BroadcastIncludeOrigin,
			OriginUser: c.Identity.UserID,
			OriginConn: c.ID,
			Timestamp:  h.clock.Now(),
		}, refs)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
			defer cancel()
			h.activity.Record(ctx, client.ActivityEvent{
				EntityID:   topic.EntityID(),
				ActorID:    c.Identity.UserID,
				ActionType: outEvent,
				Metadata:   payload,
			})
			h.notify.Notify(ctx, client.NotificationEvent{
				Type:         client.NotificationSceneChanged,
				ActorID:      c.Identity.UserID,
				ResourceType: string(topic.Kind()),
				ResourceID:   topic.EntityID(),
				Title:        c.Identity.Nickname + " changed a scene",
				Metadata:     map[string]interface{}{"event": outEvent},
			})
		}()
		h.touchActivity(c.Identity.UserID)
	}
}
