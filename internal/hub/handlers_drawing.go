package hub

import (
	"context"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// drawingDataRequest covers the whole live-stroke stream: "start" opens a
// session, "move" appends points, "end" inside the data stream is treated
// like endSession without persistence, "cancel" discards the stroke.
type drawingDataRequest struct {
	Type      string               `json:"type"`
	SessionID string               `json:"sessionId"`
	Tool      string               `json:"tool,omitempty"`
	Color     string               `json:"color,omitempty"`
	Width     float64              `json:"width,omitempty"`
	Points    []model.DrawingPoint `json:"points,omitempty"`
}

func (h *Hub) handleDrawingData(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req drawingDataRequest
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	switch req.Type {
	case "start":
		session, err := h.drawings.Start(req.SessionID, c.Identity.UserID, topic, req.Tool, req.Color, req.Width)
		if err != nil {
			h.sendError(c, frame.Type, err, "")
			return
		}
		h.relayDrawing(c, topic, "start", session, nil)

	case "move":
		session, err := h.drawings.AppendPoints(req.SessionID, c.Identity.UserID, req.Points)
		if err != nil {
			h.sendError(c, frame.Type, err, "")
			return
		}
		// Points are relayed as they arrive; peers render the stroke live
		// without the server replaying the buffer.
		h.relayDrawing(c, topic, "move", session, req.Points)

	case "end":
		session, err := h.drawings.End(req.SessionID, c.Identity.UserID)
		if err != nil {
			h.sendError(c, frame.Type, err, "")
			return
		}
		h.endDrawing(c, session, false)

	case "cancel":
		session, err := h.drawings.End(req.SessionID, c.Identity.UserID)
		if err != nil {
			h.sendError(c, frame.Type, err, "")
			return
		}
		// A cancelled stroke vanishes for everyone; peers drop what they
		// rendered so far.
		h.router.Route(&model.Envelope{
			Event: "session_cancelled",
			Payload: map[string]interface{}{
				"sessionId": session.SessionID,
				"userId":    session.UserID.String(),
			},
			Topics:     []model.Topic{session.Topic},
			Mode:       model.BroadcastIncludeOrigin,
			OriginUser: c.Identity.UserID,
			OriginConn: c.ID,
			Timestamp:  h.clock.Now(),
		})

	default:
		h.sendError(c, frame.Type, ErrValidation, "unknown drawing data type")
	}

	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) relayDrawing(c *Conn, topic model.Topic, kind string, session *model.DrawingSession, points []model.DrawingPoint) {
	h.router.Route(&model.Envelope{
		Event: "drawing:update",
		Payload: map[string]interface{}{
			"type":      kind,
			"sessionId": session.SessionID,
			"userId":    c.Identity.UserID.String(),
			"tool":      session.Tool,
			"color":     session.Color,
			"width":     session.Width,
			"points":    points,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
}

func (h *Hub) handleDrawingEnd(c *Conn, frame *model.Frame) {
	var req struct {
		SessionID        string `json:"sessionId"`
		SaveAsAnnotation bool   `json:"saveAsAnnotation"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	session, err := h.drawings.End(req.SessionID, c.Identity.UserID)
	if err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.endDrawing(c, session, req.SaveAsAnnotation)
	h.touchActivity(c.Identity.UserID)
}

// endDrawing broadcasts the terminal session event. Persisting the stroke
// as a durable annotation is the client's concern through the REST API;
// the hub only records the author's intent in the activity feed.
func (h *Hub) endDrawing(c *Conn, session *model.DrawingSession, saved bool) {
	env := &model.Envelope{
		Event: "session_ended",
		Payload: map[string]interface{}{
			"sessionId":        session.SessionID,
			"userId":           session.UserID.String(),
			"saveAsAnnotation": saved,
			"pointCount":       len(session.Points),
		},
		Topics:     []model.Topic{session.Topic},
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	}
	h.router.Route(env)

	if !saved {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		h.activity.Record(ctx, client.ActivityEvent{
			EntityID:    session.Topic.EntityID(),
			ActorID:     session.UserID,
			ActionType:  "annotation.drawn",
			Description: "freehand drawing saved as annotation",
			Metadata: map[string]interface{}{
				"sessionId":  session.SessionID,
				"pointCount": len(session.Points),
			},
		})
	}()
}
