package hub

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// handleWorkTaskEvent builds the handler for one work-task event. Work-task
// topics are flat: no parent expansion, assignment gets a direct nudge on
// top of the broadcast.
func (h *Hub) handleWorkTaskEvent(outEvent string) handlerFunc {
	return func(c *Conn, frame *model.Frame) {
		topic, ok := h.parseFrameTopic(c, frame)
		if !ok {
			return
		}
		if topic.Kind() != model.TopicWorkTask {
			h.sendError(c, frame.Type, ErrValidation, "work-task topic required")
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
		payload["taskId"] = topic.EntityID().String()

		h.router.Route(&model.Envelope{
			Event:      outEvent,
			Payload:    payload,
			Topics:     []model.Topic{topic},
			Mode:       model.BroadcastIncludeOrigin,
			OriginUser: c.Identity.UserID,
			OriginConn: c.ID,
			Timestamp:  h.clock.Now(),
		})

		if outEvent == "work-task.assigned" {
			h.nudgeAssignee(c, topic, payload)
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
			defer cancel()
			h.activity.Record(ctx, client.ActivityEvent{
				EntityID:   topic.EntityID(),
				ActorID:    c.Identity.UserID,
				ActionType: outEvent,
				Metadata:   payload,
			})
		}()
		h.touchActivity(c.Identity.UserID)
	}
}

// nudgeAssignee delivers the assignment directly to the assignee, who may
// not have the task topic open.
func (h *Hub) nudgeAssignee(c *Conn, topic model.Topic, payload map[string]interface{}) {
	raw, ok := payload["assigneeId"].(string)
	if !ok {
		return
	}
	assignee, err := uuid.Parse(raw)
	if err != nil || assignee == c.Identity.UserID {
		return
	}

	h.routeDirect(c, assignee, "work-task.assigned", map[string]interface{}{
		"taskId":     topic.EntityID().String(),
		"assignerId": c.Identity.UserID.String(),
		"nickname":   c.Identity.Nickname,
	})
}
