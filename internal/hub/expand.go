package hub

import (
	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// EntityRefs carries the resolved hierarchy position of the entity an event
// concerns. Populated by handlers from the membership oracle; consumed by
// ParentTopics so the image -> scene -> project expansion policy lives in
// exactly one place.
type EntityRefs struct {
	ImageID   *uuid.UUID
	SceneID   *uuid.UUID
	ProjectID *uuid.UUID
}

// activityEvents lists the event names that are relevant at coarser
// granularity than their own topic. Fine-grained traffic (cursor, drawing,
// typing) never expands upward; project-level observers get an activity
// feed without the firehose.
var activityEvents = map[string]struct{}{
	"image.uploaded":        {},
	"image.version_added":   {},
	"image.version_restored": {},
	"image.deleted":         {},
	"image.restored":        {},
	"annotation.created":    {},
	"annotation.resolved":   {},
	"comment.created":       {},
	"scene.created":         {},
	"scene.updated":         {},
	"scene.deleted":         {},
	"scene.reordered":       {},
	"scene.copied":          {},
	"scene.status_changed":  {},
	"scene.locked":          {},
}

// ParentTopics returns the topics above the event's own scope that should
// receive a lighter-weight activity envelope, or nil when the event does
// not warrant one.
func ParentTopics(event string, refs EntityRefs) []model.Topic {
	if _, ok := activityEvents[event]; !ok {
		return nil
	}

	var out []model.Topic
	if refs.ImageID != nil && refs.SceneID != nil {
		out = append(out, model.SceneTopic(*refs.SceneID))
	}
	if refs.ProjectID != nil {
		out = append(out, model.ProjectTopic(*refs.ProjectID))
	}
	return out
}

// ActivityEnvelope derives the coarse-grained sibling of a full event
// envelope: same origin, "activity" event name, and a slim payload naming
// the original event.
func ActivityEnvelope(full *model.Envelope, refs EntityRefs) *model.Envelope {
	parents := ParentTopics(full.Event, refs)
	if len(parents) == 0 {
		return nil
	}

	return &model.Envelope{
		Event: "activity",
		Payload: map[string]interface{}{
			"event":     full.Event,
			"actorId":   full.OriginUser.String(),
			"projectId": uuidString(refs.ProjectID),
			"sceneId":   uuidString(refs.SceneID),
			"imageId":   uuidString(refs.ImageID),
		},
		Topics:     parents,
		Mode:       model.BroadcastExcludeOrigin,
		OriginUser: full.OriginUser,
		OriginConn: full.OriginConn,
		Timestamp:  full.Timestamp,
	}
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
