package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

func TestParentTopics_ImageEventClimbsToSceneAndProject(t *testing.T) {
	imageID := uuid.New()
	sceneID := uuid.New()
	projectID := uuid.New()
	refs := EntityRefs{ImageID: &imageID, SceneID: &sceneID, ProjectID: &projectID}

	parents := ParentTopics("image.uploaded", refs)
	assert.Equal(t, []model.Topic{model.SceneTopic(sceneID), model.ProjectTopic(projectID)}, parents)
}

func TestParentTopics_FineGrainedTrafficNeverExpands(t *testing.T) {
	imageID := uuid.New()
	sceneID := uuid.New()
	projectID := uuid.New()
	refs := EntityRefs{ImageID: &imageID, SceneID: &sceneID, ProjectID: &projectID}

	for _, event := range []string{"cursor_moved", "drawing:update", "user_typing", "upload_progress"} {
		assert.Nil(t, ParentTopics(event, refs), "event %s must not expand", event)
	}
}

func TestParentTopics_SceneEventClimbsToProjectOnly(t *testing.T) {
	sceneID := uuid.New()
	projectID := uuid.New()
	refs := EntityRefs{SceneID: &sceneID, ProjectID: &projectID}

	parents := ParentTopics("scene.updated", refs)
	assert.Equal(t, []model.Topic{model.ProjectTopic(projectID)}, parents)
}

func TestParentTopics_UnresolvedHierarchyDegradesGracefully(t *testing.T) {
	imageID := uuid.New()
	assert.Nil(t, ParentTopics("image.uploaded", EntityRefs{ImageID: &imageID}),
		"no resolved parents means no expansion, not an error")
}

func TestActivityEnvelope_CarriesSlimPayload(t *testing.T) {
	imageID := uuid.New()
	sceneID := uuid.New()
	projectID := uuid.New()
	actor := uuid.New()
	refs := EntityRefs{ImageID: &imageID, SceneID: &sceneID, ProjectID: &projectID}

	full := &model.Envelope{
		Event:      "annotation.created",
		Payload:    map[string]interface{}{"annotationId": "a1", "geometry": map[string]interface{}{"x": 1}},
		Topics:     []model.Topic{model.ImageTopic(imageID)},
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: actor,
	}

	activity := ActivityEnvelope(full, refs)
	require.NotNil(t, activity)
	assert.Equal(t, "activity", activity.Event)
	assert.Equal(t, model.BroadcastExcludeOrigin, activity.Mode)

	payload, ok := activity.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "annotation.created", payload["event"])
	assert.Equal(t, actor.String(), payload["actorId"])
	assert.NotContains(t, payload, "geometry", "the full payload stays on the fine-grained topic")
}

func TestActivityEnvelope_NilWhenNotActivityWorthy(t *testing.T) {
	imageID := uuid.New()
	refs := EntityRefs{ImageID: &imageID}
	full := &model.Envelope{Event: "cursor_moved", Topics: []model.Topic{model.ImageTopic(imageID)}}
	assert.Nil(t, ActivityEnvelope(full, refs))
}
