package hub

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

func TestUploadStore_OwnershipEnforced(t *testing.T) {
	store := NewUploadStore(newFakeClock())
	owner := uuid.New()
	intruder := uuid.New()
	topic := model.SceneTopic(uuid.New())

	_, err := store.Start("up-1", owner, topic, "cut_03.png", 1024)
	require.NoError(t, err)

	_, err = store.Progress("up-1", intruder, 512)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	session, err := store.Progress("up-1", owner, 512)
	require.NoError(t, err)
	assert.Equal(t, int64(512), session.BytesDone,
		"rejected progress must not have touched the session")

	_, err = store.Finish("up-1", intruder)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	_, err = store.Finish("up-1", owner)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())

	_, err = store.Progress("up-1", owner, 1024)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUploadStore_StartValidation(t *testing.T) {
	store := NewUploadStore(newFakeClock())

	_, err := store.Start("", uuid.New(), model.SceneTopic(uuid.New()), "a.png", 1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.Start("up-1", uuid.New(), model.SceneTopic(uuid.New()), "a.png", -1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUploadStore_SweepExpiredUsesStartTime(t *testing.T) {
	clock := newFakeClock()
	store := NewUploadStore(clock)
	topic := model.SceneTopic(uuid.New())
	owner := uuid.New()

	store.Start("old", owner, topic, "old.png", 10)
	clock.Advance(59 * time.Minute)
	store.Start("fresh", owner, topic, "fresh.png", 10)

	// Progress on the old session does not extend its life.
	store.Progress("old", owner, 5)

	clock.Advance(time.Minute)
	expired := store.SweepExpired(time.Hour)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].SessionID)
	assert.Equal(t, 1, store.Len())
}

func TestDrawingStore_AppendRejectedWithoutMutation(t *testing.T) {
	store := NewDrawingStore(newFakeClock())
	owner := uuid.New()
	intruder := uuid.New()
	topic := model.ImageTopic(uuid.New())

	_, err := store.Start("draw-1", owner, topic, "pen", "#ff0000", 2)
	require.NoError(t, err)

	_, err = store.AppendPoints("draw-1", intruder, []model.DrawingPoint{{X: 1, Y: 1}})
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	session, err := store.AppendPoints("draw-1", owner, []model.DrawingPoint{{X: 2, Y: 2}})
	require.NoError(t, err)
	assert.Len(t, session.Points, 1, "intruder's points must not be in the buffer")
}

func TestDrawingStore_EndReturnsBufferedStroke(t *testing.T) {
	store := NewDrawingStore(newFakeClock())
	owner := uuid.New()
	topic := model.ImageTopic(uuid.New())

	store.Start("draw-1", owner, topic, "brush", "#000", 4)
	store.AppendPoints("draw-1", owner, []model.DrawingPoint{{X: 1, Y: 2, Pressure: 0.5}})
	store.AppendPoints("draw-1", owner, []model.DrawingPoint{{X: 3, Y: 4}})

	session, err := store.End("draw-1", owner)
	require.NoError(t, err)
	assert.Len(t, session.Points, 2)
	assert.Equal(t, 0, store.Len())

	_, err = store.End("draw-1", owner)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDrawingStore_SweepExpiredUsesLastUpdate(t *testing.T) {
	clock := newFakeClock()
	store := NewDrawingStore(clock)
	owner := uuid.New()
	topic := model.ImageTopic(uuid.New())

	store.Start("stale", owner, topic, "pen", "", 1)
	store.Start("live", owner, topic, "pen", "", 1)

	clock.Advance(29 * time.Minute)
	store.AppendPoints("live", owner, []model.DrawingPoint{{X: 1, Y: 1}})

	clock.Advance(time.Minute)
	expired := store.SweepExpired(30 * time.Minute)
	require.Len(t, expired, 1)
	assert.Equal(t, "stale", expired[0].SessionID)
	assert.Equal(t, 1, store.Len())
}

func TestUploadStore_StartRejectsDuplicateSessionID(t *testing.T) {
	store := NewUploadStore(newFakeClock())
	owner := uuid.New()
	intruder := uuid.New()
	topic := model.SceneTopic(uuid.New())

	_, err := store.Start("shared", owner, topic, "cut_01.png", 1024)
	require.NoError(t, err)

	// Another identity cannot claim the id and displace the owner.
	_, err = store.Start("shared", intruder, topic, "other.png", 1)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	// The owner's session survived intact and still accepts progress.
	session, err := store.Progress("shared", owner, 512)
	require.NoError(t, err)
	assert.Equal(t, "cut_01.png", session.FileName)
	assert.Equal(t, int64(512), session.BytesDone)

	// The owner cannot restart it while it is active either.
	_, err = store.Start("shared", owner, topic, "cut_01.png", 1024)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, store.Len())
}

func TestDrawingStore_StartCannotHijackSession(t *testing.T) {
	store := NewDrawingStore(newFakeClock())
	owner := uuid.New()
	intruder := uuid.New()
	topic := model.ImageTopic(uuid.New())

	_, err := store.Start("stroke", owner, topic, "pen", "#000", 2)
	require.NoError(t, err)

	_, err = store.Start("stroke", intruder, topic, "pen", "#fff", 4)
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	session, err := store.AppendPoints("stroke", owner, []model.DrawingPoint{{X: 1, Y: 2}})
	require.NoError(t, err)
	assert.Equal(t, "#000", session.Color, "the original session must be untouched")
	assert.Len(t, session.Points, 1)

	_, err = store.Start("stroke", owner, topic, "pen", "#000", 2)
	assert.ErrorIs(t, err, ErrValidation)
}
