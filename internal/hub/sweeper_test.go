package hub

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

func TestSweeper_PresenceDemotionsAreBroadcast(t *testing.T) {
	clock := newFakeClock()
	h, _, _, _ := newTestHub(t, clock)
	s := NewSweeper(h)
	topic := model.ProjectTopic(uuid.New())

	idler := connect(h, newTestIdentity("idler"))
	watcher := connect(h, newTestIdentity("watcher"))
	join(t, h, idler, topic)
	join(t, h, watcher, topic)
	drainFrames(idler)
	drainFrames(watcher)

	clock.Advance(6 * time.Minute)
	// The watcher went quiet too; keep it active so only one demotion fires.
	h.tracker.Touch(watcher.Identity.UserID)
	s.sweepPresence()

	updated, ok := frameWithEvent(drainFrames(watcher), "presence_updated")
	require.True(t, ok)
	assert.Equal(t, idler.Identity.UserID.String(), updated.Payload["userId"])
	assert.Equal(t, "IDLE", updated.Payload["status"])

	_, ok = frameWithEvent(drainFrames(idler), "presence_updated")
	assert.True(t, ok, "the demoted identity's own tabs learn about it")
}

func TestSweeper_TypingTimeoutNotifiesEveryone(t *testing.T) {
	clock := newFakeClock()
	h, _, _, _ := newTestHub(t, clock)
	s := NewSweeper(h)
	topic := model.ImageTopic(uuid.New())

	typist := connect(h, newTestIdentity("typist"))
	peer := connect(h, newTestIdentity("peer"))
	join(t, h, typist, topic)
	join(t, h, peer, topic)

	h.dispatch(typist, &model.Frame{
		Type:    "presence.typingStart",
		Topic:   topic.String(),
		Payload: payloadJSON(t, map[string]string{"context": "comment"}),
	})
	drainFrames(typist)
	drainFrames(peer)

	clock.Advance(11 * time.Second)
	s.sweepTyping()

	stopped, ok := frameWithEvent(drainFrames(peer), "typing_stopped")
	require.True(t, ok)
	assert.Equal(t, "timeout", stopped.Payload["reason"])

	_, ok = frameWithEvent(drainFrames(typist), "typing_stopped")
	assert.True(t, ok, "sweep-driven stop reaches the typist's own tabs")
}

func TestSweeper_AbandonedUploadBroadcastsTimeout(t *testing.T) {
	clock := newFakeClock()
	h, _, _, _ := newTestHub(t, clock)
	s := NewSweeper(h)
	topic := model.SceneTopic(uuid.New())

	uploader := connect(h, newTestIdentity("uploader"))
	watcher := connect(h, newTestIdentity("watcher"))
	join(t, h, uploader, topic)
	join(t, h, watcher, topic)

	h.dispatch(uploader, &model.Frame{
		Type:  "image.uploadStart",
		Topic: topic.String(),
		Payload: payloadJSON(t, map[string]interface{}{
			"sessionId": "u1", "fileName": "wip.png", "totalSize": 10,
		}),
	})
	drainFrames(uploader)
	drainFrames(watcher)

	clock.Advance(61 * time.Minute)
	s.sweepUploads()

	failed, ok := frameWithEvent(drainFrames(watcher), "upload_failed")
	require.True(t, ok)
	assert.Equal(t, "timeout", failed.Payload["reason"])
	assert.Equal(t, 0, h.uploads.Len())
}

func TestSweeper_StalledDrawingEndsSession(t *testing.T) {
	clock := newFakeClock()
	h, _, _, _ := newTestHub(t, clock)
	s := NewSweeper(h)
	topic := model.ImageTopic(uuid.New())

	artist := connect(h, newTestIdentity("artist"))
	peer := connect(h, newTestIdentity("peer"))
	join(t, h, artist, topic)
	join(t, h, peer, topic)

	h.dispatch(artist, &model.Frame{
		Type:  "drawing.data",
		Topic: topic.String(),
		Payload: payloadJSON(t, map[string]interface{}{
			"type": "start", "sessionId": "d1", "tool": "pen",
		}),
	})
	drainFrames(artist)
	drainFrames(peer)

	clock.Advance(31 * time.Minute)
	s.sweepDrawings()

	ended, ok := frameWithEvent(drainFrames(peer), "session_ended")
	require.True(t, ok)
	assert.Equal(t, "timeout", ended.Payload["reason"])
	assert.Equal(t, false, ended.Payload["saveAsAnnotation"])
	assert.Equal(t, 0, h.drawings.Len())
}

func TestSweeper_RoomSweepDropsNothingOccupied(t *testing.T) {
	clock := newFakeClock()
	h, _, _, _ := newTestHub(t, clock)
	s := NewSweeper(h)
	topic := model.ProjectTopic(uuid.New())

	resident := connect(h, newTestIdentity("resident"))
	join(t, h, resident, topic)

	s.sweepRooms()
	assert.True(t, h.registry.Contains(topic, resident.Identity.UserID))
	assert.Equal(t, 1, h.registry.TopicCount())
}

func TestSweeper_PanicInOneSweepIsContained(t *testing.T) {
	h, _, _, _ := newTestHub(t, newFakeClock())
	s := NewSweeper(h)

	assert.NotPanics(t, func() {
		func() {
			defer s.recoverSweep("explosive")
			panic("boom")
		}()
	})
}

func TestSweeper_StartSchedulesConfiguredJobs(t *testing.T) {
	h, _, _, _ := newTestHub(t, newFakeClock())
	h.cfg.RoomSweepEvery = 2 * time.Minute
	h.cfg.UploadSweepEvery = 30 * time.Minute
	h.cfg.DrawingSweepEvery = 10 * time.Minute
	s := NewSweeper(h)

	require.NoError(t, s.Start())
	defer s.Stop()

	// positions, rooms, uploads, drawings.
	assert.Len(t, s.cron.Entries(), 4)
}
