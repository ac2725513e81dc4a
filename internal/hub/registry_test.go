package hub

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

func TestRegistry_JoinIsIdempotentPerIdentity(t *testing.T) {
	r := NewRoomRegistry(newFakeClock())
	topic := model.ProjectTopic(uuid.New())
	identity := newTestIdentity("alice")
	connA := uuid.New()
	connB := uuid.New()

	assert.True(t, r.Join(topic, identity, connA), "first connection should make the identity a new member")
	assert.False(t, r.Join(topic, identity, connB), "second tab must not look like a new member")
	assert.Equal(t, 1, r.MemberCount(topic))
}

func TestRegistry_LeaveOnlyWhenLastConnectionGone(t *testing.T) {
	r := NewRoomRegistry(newFakeClock())
	topic := model.SceneTopic(uuid.New())
	identity := newTestIdentity("bob")
	connA := uuid.New()
	connB := uuid.New()

	r.Join(topic, identity, connA)
	r.Join(topic, identity, connB)

	left, emptied := r.Leave(topic, identity.UserID, connA)
	assert.False(t, left, "identity still has a connection in the room")
	assert.False(t, emptied)

	left, emptied = r.Leave(topic, identity.UserID, connB)
	assert.True(t, left)
	assert.True(t, emptied)
	assert.Equal(t, 0, r.TopicCount(), "empty room must be collected")
}

func TestRegistry_MembersOrderedByJoin(t *testing.T) {
	clock := newFakeClock()
	r := NewRoomRegistry(clock)
	topic := model.ImageTopic(uuid.New())

	first := newTestIdentity("first")
	second := newTestIdentity("second")

	r.Join(topic, first, uuid.New())
	clock.Advance(time.Second)
	r.Join(topic, second, uuid.New())

	members := r.Members(topic)
	require.Len(t, members, 2)
	assert.Equal(t, first.UserID, members[0].Identity.UserID)
	assert.Equal(t, second.UserID, members[1].Identity.UserID)
}

func TestRegistry_RemoveConnectionReportsDepartedTopics(t *testing.T) {
	r := NewRoomRegistry(newFakeClock())
	identity := newTestIdentity("carol")
	connA := uuid.New()
	connB := uuid.New()

	topicA := model.ProjectTopic(uuid.New())
	topicB := model.SceneTopic(uuid.New())

	r.Join(topicA, identity, connA)
	r.Join(topicB, identity, connA)
	r.Join(topicB, identity, connB)

	departed := r.RemoveConnection(identity.UserID, connA)
	assert.ElementsMatch(t, []model.Topic{topicA}, departed,
		"identity departs only topics where no other connection remains")

	departed = r.RemoveConnection(identity.UserID, connB)
	assert.ElementsMatch(t, []model.Topic{topicB}, departed)
	assert.Equal(t, 0, r.TopicCount())
}

func TestRegistry_ContainsAndTopicsOf(t *testing.T) {
	r := NewRoomRegistry(newFakeClock())
	identity := newTestIdentity("dave")
	topic := model.ChannelTopic(uuid.New())

	assert.False(t, r.Contains(topic, identity.UserID))
	r.Join(topic, identity, uuid.New())
	assert.True(t, r.Contains(topic, identity.UserID))
	assert.Equal(t, []model.Topic{topic}, r.TopicsOf(identity.UserID))
}

// For any interleaving of joins and leaves, the member count equals the
// number of identities holding at least one live connection in the room.
func TestProperty_RegistryCountMatchesLiveConnections(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("member count tracks identities with live connections", prop.ForAll(
		func(identityCount, connsPer, leaves int) bool {
			r := NewRoomRegistry(newFakeClock())
			topic := model.ProjectTopic(uuid.New())

			type connRef struct {
				user uuid.UUID
				conn uuid.UUID
			}
			var all []connRef
			for i := 0; i < identityCount; i++ {
				identity := newTestIdentity("user")
				for j := 0; j < connsPer; j++ {
					connID := uuid.New()
					r.Join(topic, identity, connID)
					all = append(all, connRef{user: identity.UserID, conn: connID})
				}
			}

			if leaves > len(all) {
				leaves = len(all)
			}
			for i := 0; i < leaves; i++ {
				r.Leave(topic, all[i].user, all[i].conn)
			}

			remaining := make(map[uuid.UUID]int)
			for _, ref := range all[leaves:] {
				remaining[ref.user]++
			}
			return r.MemberCount(topic) == len(remaining)
		},
		gen.IntRange(0, 8),
		gen.IntRange(1, 4),
		gen.IntRange(0, 32),
	))

	properties.TestingRun(t)
}
