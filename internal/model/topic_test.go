package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopic_RoundTrip(t *testing.T) {
	id := uuid.New()

	cases := []struct {
		topic Topic
		kind  TopicKind
	}{
		{ProjectTopic(id), TopicProject},
		{SceneTopic(id), TopicScene},
		{ImageTopic(id), TopicImage},
		{ChannelTopic(id), TopicChannel},
		{WorkTaskTopic(id), TopicWorkTask},
		{UserTopic(id), TopicUser},
	}

	for _, tc := range cases {
		kind, entityID, err := ParseTopic(tc.topic.String())
		require.NoError(t, err, "topic %s", tc.topic)
		assert.Equal(t, tc.kind, kind)
		assert.Equal(t, id, entityID)
		assert.Equal(t, tc.kind, tc.topic.Kind())
		assert.Equal(t, id, tc.topic.EntityID())
	}
}

func TestParseTopic_WorkTaskKindSurvivesHyphen(t *testing.T) {
	// "work-task" contains no colon, so the last-colon split must still
	// find the id boundary.
	id := uuid.New()
	kind, entityID, err := ParseTopic("work-task:" + id.String())
	require.NoError(t, err)
	assert.Equal(t, TopicWorkTask, kind)
	assert.Equal(t, id, entityID)
}

func TestParseTopic_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"project",
		"project:",
		":" + uuid.New().String(),
		"workspace:" + uuid.New().String(),
		"project:not-a-uuid",
	} {
		_, _, err := ParseTopic(raw)
		assert.Error(t, err, "raw %q", raw)
	}
}

func TestTopic_MalformedAccessors(t *testing.T) {
	bad := Topic("garbage")
	assert.Equal(t, TopicKind(""), bad.Kind())
	assert.Equal(t, uuid.Nil, bad.EntityID())
}
