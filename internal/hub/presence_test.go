package hub

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

func TestPresence_FirstAndLastConnection(t *testing.T) {
	tracker := NewPresenceTracker(newFakeClock())
	identity := newTestIdentity("alice")
	connA := newTestConn(identity)
	connB := newTestConn(identity)

	assert.True(t, tracker.AddConnection(identity, connA))
	assert.False(t, tracker.AddConnection(identity, connB), "second tab must not create a new entry")
	assert.Equal(t, 1, tracker.EntryCount())

	assert.False(t, tracker.RemoveConnection(identity.UserID, connA.ID))
	assert.True(t, tracker.RemoveConnection(identity.UserID, connB.ID))
	assert.Equal(t, 0, tracker.EntryCount())

	_, ok := tracker.Snapshot(identity.UserID)
	assert.False(t, ok, "presence record dies with the last connection")
}

func TestPresence_LastConnectionClearsEphemeralState(t *testing.T) {
	tracker := NewPresenceTracker(newFakeClock())
	identity := newTestIdentity("bob")
	conn := newTestConn(identity)
	topic := model.ImageTopic(uuid.New())

	tracker.AddConnection(identity, conn)
	tracker.SetCursor(topic, identity.UserID, 10, 20, "pen", "#fff")
	tracker.SetViewport(topic, identity.UserID, 0, 0, 1.5)
	tracker.StartTyping(topic, "comment", identity.UserID)

	tracker.RemoveConnection(identity.UserID, conn.ID)

	assert.Empty(t, tracker.TypingUsers(topic, "comment"))
	assert.Equal(t, 0, tracker.SweepStalePositions(0), "no cursor or viewport state may survive")
}

func TestPresence_SweepIdleDemotesInStages(t *testing.T) {
	clock := newFakeClock()
	tracker := NewPresenceTracker(clock)
	identity := newTestIdentity("carol")
	tracker.AddConnection(identity, newTestConn(identity))

	// Not enough silence yet.
	clock.Advance(4 * time.Minute)
	assert.Empty(t, tracker.SweepIdle(5*time.Minute, 15*time.Minute))

	clock.Advance(time.Minute)
	transitions := tracker.SweepIdle(5*time.Minute, 15*time.Minute)
	require.Len(t, transitions, 1)
	assert.Equal(t, model.PresenceActive, transitions[0].From)
	assert.Equal(t, model.PresenceIdle, transitions[0].To)

	// Away threshold is measured from the same last activity.
	clock.Advance(10 * time.Minute)
	transitions = tracker.SweepIdle(5*time.Minute, 15*time.Minute)
	require.Len(t, transitions, 1)
	assert.Equal(t, model.PresenceIdle, transitions[0].From)
	assert.Equal(t, model.PresenceAway, transitions[0].To)
}

func TestPresence_TouchPromotesBackToActive(t *testing.T) {
	clock := newFakeClock()
	tracker := NewPresenceTracker(clock)
	identity := newTestIdentity("dave")
	tracker.AddConnection(identity, newTestConn(identity))

	clock.Advance(6 * time.Minute)
	tracker.SweepIdle(5*time.Minute, 15*time.Minute)

	tr := tracker.Touch(identity.UserID)
	require.NotNil(t, tr)
	assert.Equal(t, model.PresenceIdle, tr.From)
	assert.Equal(t, model.PresenceActive, tr.To)

	assert.Nil(t, tracker.Touch(identity.UserID), "touch while active is not a transition")
}

func TestPresence_SetStatusReturnsTransitionOnlyOnChange(t *testing.T) {
	tracker := NewPresenceTracker(newFakeClock())
	identity := newTestIdentity("erin")
	tracker.AddConnection(identity, newTestConn(identity))

	tr := tracker.SetStatus(identity.UserID, model.PresenceAway)
	require.NotNil(t, tr)
	assert.Equal(t, model.PresenceAway, tr.To)

	assert.Nil(t, tracker.SetStatus(identity.UserID, model.PresenceAway))
	assert.Nil(t, tracker.SetStatus(uuid.New(), model.PresenceAway), "unknown identity is a no-op")
}

func TestPresence_SweepTypingExpiresSilentTypists(t *testing.T) {
	clock := newFakeClock()
	tracker := NewPresenceTracker(clock)
	identity := newTestIdentity("frank")
	tracker.AddConnection(identity, newTestConn(identity))
	topic := model.ImageTopic(uuid.New())

	started, _ := tracker.StartTyping(topic, "comment", identity.UserID)
	assert.True(t, started)

	// A repeat start refreshes the deadline instead of re-announcing.
	clock.Advance(8 * time.Second)
	started, _ = tracker.StartTyping(topic, "comment", identity.UserID)
	assert.False(t, started)

	clock.Advance(8 * time.Second)
	assert.Empty(t, tracker.SweepTyping(10*time.Second), "refreshed entry is not yet expired")

	clock.Advance(3 * time.Second)
	expired := tracker.SweepTyping(10 * time.Second)
	require.Len(t, expired, 1)
	assert.Equal(t, topic, expired[0].Topic)
	assert.Equal(t, "comment", expired[0].Context)
	assert.Equal(t, identity.UserID, expired[0].UserID)

	snapshot, ok := tracker.Snapshot(identity.UserID)
	require.True(t, ok)
	assert.False(t, snapshot.IsTyping)
}

func TestPresence_StopTypingIsIdempotent(t *testing.T) {
	tracker := NewPresenceTracker(newFakeClock())
	identity := newTestIdentity("grace")
	tracker.AddConnection(identity, newTestConn(identity))
	topic := model.SceneTopic(uuid.New())

	tracker.StartTyping(topic, "", identity.UserID)
	assert.True(t, tracker.StopTyping(topic, "", identity.UserID))
	assert.False(t, tracker.StopTyping(topic, "", identity.UserID))
}

func TestPresence_OnlineFiltersByProject(t *testing.T) {
	tracker := NewPresenceTracker(newFakeClock())
	projectID := uuid.New()

	inside := newTestIdentity("inside")
	outside := newTestIdentity("outside")
	tracker.AddConnection(inside, newTestConn(inside))
	tracker.AddConnection(outside, newTestConn(outside))
	tracker.SetLocation(inside.UserID, model.Location{ProjectID: &projectID})

	all := tracker.Online(nil)
	assert.Len(t, all, 2)

	filtered := tracker.Online(&projectID)
	require.Len(t, filtered, 1)
	assert.Equal(t, inside.UserID, filtered[0].Identity.UserID)
}

func TestPresence_SweepStalePositions(t *testing.T) {
	clock := newFakeClock()
	tracker := NewPresenceTracker(clock)
	identity := newTestIdentity("heidi")
	tracker.AddConnection(identity, newTestConn(identity))
	topic := model.ImageTopic(uuid.New())

	tracker.SetCursor(topic, identity.UserID, 1, 2, "", "")
	clock.Advance(29 * time.Minute)
	tracker.SetViewport(topic, identity.UserID, 0, 0, 2)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, tracker.SweepStalePositions(30*time.Minute), "only the cursor is stale")
}
