package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

const collaboratorTimeout = 5 * time.Second

func (h *Hub) buildHandlerTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		"join":  h.handleJoin,
		"leave": h.handleLeave,

		"presence.updateStatus":   h.handleUpdateStatus,
		"presence.cursorMove":     h.handleCursorMove,
		"presence.viewportChange": h.handleViewportChange,
		"presence.typingStart":    h.handleTypingStart,
		"presence.typingStop":     h.handleTypingStop,
		"presence.setLocation":    h.handleSetLocation,

		"comment.create": h.handleCommentCreate,
		"comment.update": h.handleCommentUpdate,
		"comment.delete": h.handleCommentDelete,
		"comment.react":  h.handleCommentReact,

		"annotation.create":  h.handleAnnotationCreate,
		"annotation.update":  h.handleAnnotationUpdate,
		"annotation.delete":  h.handleAnnotationDelete,
		"annotation.resolve": h.handleAnnotationResolve,

		"drawing.data":       h.handleDrawingData,
		"drawing.endSession": h.handleDrawingEnd,

		"image.uploadStart":    h.handleUploadStart,
		"image.uploadProgress": h.handleUploadProgress,
		"image.uploadComplete": h.handleUploadComplete,
		"image.uploadError":    h.handleUploadError,
		"image.newVersion":     h.handleImageNewVersion,
		"image.restoreVersion": h.handleImageRestoreVersion,
		"image.delete":         h.handleImageDelete,
		"image.restore":        h.handleImageRestore,

		"scene.create":       h.handleSceneEvent("scene.created"),
		"scene.update":       h.handleSceneEvent("scene.updated"),
		"scene.delete":       h.handleSceneEvent("scene.deleted"),
		"scene.reorder":      h.handleSceneEvent("scene.reordered"),
		"scene.copy":         h.handleSceneEvent("scene.copied"),
		"scene.statusChange": h.handleSceneEvent("scene.status_changed"),
		"scene.lock":         h.handleSceneEvent("scene.locked"),

		"channel.join":         h.handleChannelJoin,
		"channel.leave":        h.handleChannelLeave,
		"channel.sendMessage":  h.handleChannelMessage,
		"channel.typingStart":  h.handleTypingStart,
		"channel.typingStop":   h.handleTypingStop,
		"channel.invite":       h.handleChannelInvite,
		"channel.acceptInvite": h.handleChannelAcceptInvite,

		"friend.requestSent":     h.handleFriendRequest,
		"friend.requestAccepted": h.handleFriendAccepted,
		"friend.removed":         h.handleFriendRemoved,
		"friend.statusQuery":     h.handleFriendStatusQuery,

		"message.send":           h.handleDirectMessage,
		"message.markRead":       h.handleMessageMarkRead,
		"message.typingStart":    h.handleDirectTypingStart,
		"message.typingStop":     h.handleDirectTypingStop,
		"message.historyRequest": h.handleMessageHistory,

		"work-task.update":       h.handleWorkTaskEvent("work-task.updated"),
		"work-task.statusChange": h.handleWorkTaskEvent("work-task.status_changed"),
		"work-task.assign":       h.handleWorkTaskEvent("work-task.assigned"),
	}
}

// decode unmarshals a frame payload into a handler's request struct.
func decode(frame *model.Frame, v interface{}) error {
	if len(frame.Payload) == 0 {
		return fmt.Errorf("%w: payload required", ErrValidation)
	}
	if err := json.Unmarshal(frame.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// parseFrameTopic parses frame.Topic, emitting a validation error envelope
// on failure.
func (h *Hub) parseFrameTopic(c *Conn, frame *model.Frame) (model.Topic, bool) {
	if frame.Topic == "" {
		h.sendError(c, frame.Type, ErrValidation, "topic required")
		return "", false
	}
	if _, _, err := model.ParseTopic(frame.Topic); err != nil {
		h.sendError(c, frame.Type, ErrValidation, err.Error())
		return "", false
	}
	return model.Topic(frame.Topic), true
}

// requireJoined enforces that the identity is a member of the topic before
// an event may be emitted into it.
func (h *Hub) requireJoined(c *Conn, frame *model.Frame, topic model.Topic) bool {
	if !h.registry.Contains(topic, c.Identity.UserID) {
		h.sendError(c, frame.Type, ErrNotJoined, "")
		return false
	}
	return true
}

// respond delivers a terminal success envelope to the origin connection,
// independent of whatever broadcast the handler also triggers.
func (h *Hub) respond(c *Conn, event string, payload interface{}) {
	c.EnqueueEnvelope(&model.Envelope{
		Event:     event,
		Payload:   payload,
		Timestamp: h.clock.Now(),
	})
}

// routeWithActivity routes the full envelope to its own topic and, when
// the event is activity-worthy, a slimmer activity envelope to the parent
// topics.
func (h *Hub) routeWithActivity(env *model.Envelope, refs EntityRefs) {
	h.router.Route(env)
	if activity := ActivityEnvelope(env, refs); activity != nil {
		h.router.Route(activity)
	}
}

// resolveRefs asks the oracle for the hierarchy position of the topic's
// entity. Resolution failures degrade to no expansion rather than failing
// the event.
func (h *Hub) resolveRefs(topic model.Topic) EntityRefs {
	kind, entityID, err := model.ParseTopic(topic.String())
	if err != nil {
		return EntityRefs{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	switch kind {
	case model.TopicImage:
		imageID := entityID
		refs := EntityRefs{ImageID: &imageID}
		imageCtx, err := h.oracle.ResolveImage(ctx, entityID)
		if err != nil {
			h.logger.Debug("failed to resolve image context", zap.Error(err))
			return refs
		}
		refs.SceneID = &imageCtx.SceneID
		refs.ProjectID = &imageCtx.ProjectID
		return refs
	case model.TopicScene:
		sceneID := entityID
		refs := EntityRefs{SceneID: &sceneID}
		projectID, err := h.oracle.ResolveScene(ctx, entityID)
		if err != nil {
			h.logger.Debug("failed to resolve scene context", zap.Error(err))
			return refs
		}
		refs.ProjectID = &projectID
		return refs
	case model.TopicProject:
		projectID := entityID
		return EntityRefs{ProjectID: &projectID}
	default:
		return EntityRefs{}
	}
}

// handleJoin admits the connection to a topic after the access check. The
// reply seeds the client with everyone already there; peers learn about the
// newcomer only when this identity was not already a member.
func (h *Hub) handleJoin(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	if !h.access.CanJoin(ctx, c.Identity, topic) {
		h.metrics.RoomJoinsDenied.Inc()
		h.sendError(c, frame.Type, ErrAccessDenied, "")
		return
	}

	newMember := h.registry.Join(topic, c.Identity, c.ID)
	c.trackJoin(topic)
	h.metrics.RoomJoinsTotal.Inc()
	h.metrics.RoomsActive.Set(float64(h.registry.TopicCount()))

	h.respond(c, "joined", map[string]interface{}{
		"topic":   topic.String(),
		"members": h.seedMembers(topic),
	})

	if newMember {
		var presence *model.UserPresence
		if snapshot, ok := h.tracker.Snapshot(c.Identity.UserID); ok {
			presence = &snapshot
		}
		h.router.Route(&model.Envelope{
			Event: "user_joined",
			Payload: map[string]interface{}{
				"topic":    topic.String(),
				"identity": c.Identity,
				"presence": presence,
			},
			Topics:     []model.Topic{topic},
			Mode:       model.BroadcastExcludeOrigin,
			OriginUser: c.Identity.UserID,
			OriginConn: c.ID,
			Timestamp:  h.clock.Now(),
		})
	}

	h.touchActivity(c.Identity.UserID)
}

// seedMember pairs a room member with its live presence snapshot.
type seedMember struct {
	Identity model.Identity      `json:"identity"`
	Presence *model.UserPresence `json:"presence,omitempty"`
	JoinedAt time.Time           `json:"joinedAt"`
}

func (h *Hub) seedMembers(topic model.Topic) []seedMember {
	members := h.registry.Members(topic)
	out := make([]seedMember, 0, len(members))
	for _, m := range members {
		entry := seedMember{Identity: m.Identity, JoinedAt: m.JoinedAt}
		if snapshot, ok := h.tracker.Snapshot(m.Identity.UserID); ok {
			entry.Presence = &snapshot
		}
		out = append(out, entry)
	}
	return out
}

func (h *Hub) handleLeave(c *Conn, frame *model.Frame) {
	topic, ok := h.parseFrameTopic(c, frame)
	if !ok {
		return
	}

	left, _ := h.registry.Leave(topic, c.Identity.UserID, c.ID)
	c.trackLeave(topic)
	h.metrics.RoomsActive.Set(float64(h.registry.TopicCount()))

	h.respond(c, "left", map[string]interface{}{"topic": topic.String()})

	if left {
		h.router.Route(&model.Envelope{
			Event: "user_left",
			Payload: map[string]interface{}{
				"userId": c.Identity.UserID.String(),
				"topic":  topic.String(),
				"reason": "left",
			},
			Topics:     []model.Topic{topic},
			Mode:       model.BroadcastExcludeOrigin,
			OriginUser: c.Identity.UserID,
			OriginConn: c.ID,
			Timestamp:  h.clock.Now(),
		})
	}
}
