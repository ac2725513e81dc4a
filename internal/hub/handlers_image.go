package hub

import (
	"context"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

func (h *Hub) handleUploadStart(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}
	if !h.requireJoined(c, frame, topic) {
		return
	}

	var req struct {
		SessionID string `json:"sessionId"`
		FileName  string `json:"fileName"`
		TotalSize int64  `json:"totalSize"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	session, err := h.uploads.Start(req.SessionID, c.Identity.UserID, topic, req.FileName, req.TotalSize)
	if err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.router.Route(&model.Envelope{
		Event: "upload_started",
		Payload: map[string]interface{}{
			"sessionId": session.SessionID,
			"userId":    session.UserID.String(),
			"nickname":  c.Identity.Nickname,
			"fileName":  session.FileName,
			"totalSize": session.TotalSize,
		},
		Topics:     []model.Topic{topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
	h.touchActivity(c.Identity.UserID)
}

// handleUploadProgress relays progress to watchers. The uploader's own tabs
// already render the local progress bar, so the origin is excluded.
func (h *Hub) handleUploadProgress(c *Conn, frame *model.Frame) {
	var req struct {
		SessionID string `json:"sessionId"`
		BytesDone int64  `json:"bytesDone"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	session, err := h.uploads.Progress(req.SessionID, c.Identity.UserID, req.BytesDone)
	if err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.router.Route(&model.Envelope{
		Event: "upload_progress",
		Payload: map[string]interface{}{
			"sessionId": session.SessionID,
			"userId":    session.UserID.String(),
			"bytesDone": session.BytesDone,
			"totalSize": session.TotalSize,
		},
		Topics:     []model.Topic{session.Topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) handleUploadComplete(c *Conn, frame *model.Frame) {
	var req struct {
		SessionID string    `json:"sessionId"`
		ImageID   uuid.UUID `json:"imageId"`
		URL       string    `json:"url,omitempty"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	session, err := h.uploads.Finish(req.SessionID, c.Identity.UserID)
	if err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	refs := h.resolveRefs(session.Topic)
	h.routeWithActivity(&model.Envelope{
		Event: "image.uploaded",
		Payload: map[string]interface{}{
			"sessionId": session.SessionID,
			"userId":    session.UserID.String(),
			"imageId":   req.ImageID.String(),
			"fileName":  session.FileName,
			"url":       req.URL,
		},
		Topics:     []model.Topic{session.Topic},
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	}, refs)

	h.recordImageActivity(session.Topic, c.Identity.UserID, "image.uploaded", session.FileName, map[string]interface{}{
		"imageId":  req.ImageID.String(),
		"fileName": session.FileName,
	})
	h.notifyImage(c.Identity, session.Topic, client.NotificationImageUploaded,
		c.Identity.Nickname+" uploaded "+session.FileName)
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) handleUploadError(c *Conn, frame *model.Frame) {
	var req struct {
		SessionID string `json:"sessionId"`
		Reason    string `json:"reason,omitempty"`
	}
	if err := decode(frame, &req); err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	session, err := h.uploads.Finish(req.SessionID, c.Identity.UserID)
	if err != nil {
		h.sendError(c, frame.Type, err, "")
		return
	}

	h.router.Route(&model.Envelope{
		Event: "upload_failed",
		Payload: map[string]interface{}{
			"sessionId": session.SessionID,
			"userId":    session.UserID.String(),
			"fileName":  session.FileName,
			"reason":    req.Reason,
		},
		Topics:     []model.Topic{session.Topic},
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: c.Identity.UserID,
		OriginConn: c.ID,
		Timestamp:  h.clock.Now(),
	})
}

func (h *Hub) handleImageNewVersion(c *Conn, frame *model.Frame) {
	h.handleImageLifecycle(c, frame, "image.version_added")
}

func (h *Hub) handleImageRestoreVersion(c *Conn, frame *model.Frame) {
	h.handleImageLifecycle(c, frame, "image.version_restored")
}

func (h *Hub) handleImageDelete(c *Conn, frame *model.Frame) {
	h.handleImageLifecycle(c, frame, "image.deleted")
}

func (h *Hub) handleImageRestore(c *Conn, frame *model.Frame) {
	h.handleImageLifecycle(c, frame, "image.restored")
}

// handleImageLifecycle covers the version/delete/restore family: the hub
// relays the event, it does not mutate image state itself. The REST API has
// already performed the change before the client announces it here.
func (h *Hub) handleImageLifecycle(c *Conn, frame *model.Frame, outEvent string) {
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

	h.recordImageActivity(topic, c.Identity.UserID, outEvent, "", payload)
	h.touchActivity(c.Identity.UserID)
}

func (h *Hub) recordImageActivity(topic model.Topic, actorID uuid.UUID, action, description string, metadata map[string]interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		h.activity.Record(ctx, client.ActivityEvent{
			EntityID:    topic.EntityID(),
			ActorID:     actorID,
			ActionType:  action,
			Description: description,
			Metadata:    metadata,
		})
	}()
}

func (h *Hub) notifyImage(actor model.Identity, topic model.Topic, kind client.NotificationType, title string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
		defer cancel()
		h.notify.Notify(ctx, client.NotificationEvent{
			Type:         kind,
			ActorID:      actor.UserID,
			ResourceType: string(topic.Kind()),
			ResourceID:   topic.EntityID(),
			Title:        title,
		})
	}()
}
