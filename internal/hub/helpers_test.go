package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/config"
	"github.com/gatat123/studioo-backend-sub000/internal/metrics"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// fakeClock is a manually advanced clock for deterministic sweep tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubOracle struct {
	IsMemberFunc     func(ctx context.Context, userID uuid.UUID, kind client.EntityKind, entityID uuid.UUID) (bool, error)
	ResolveImageFunc func(ctx context.Context, imageID uuid.UUID) (*client.ImageContext, error)
	ResolveSceneFunc func(ctx context.Context, sceneID uuid.UUID) (uuid.UUID, error)
}

func (o *stubOracle) IsMember(ctx context.Context, userID uuid.UUID, kind client.EntityKind, entityID uuid.UUID) (bool, error) {
	if o.IsMemberFunc != nil {
		return o.IsMemberFunc(ctx, userID, kind, entityID)
	}
	return true, nil
}

func (o *stubOracle) ResolveImage(ctx context.Context, imageID uuid.UUID) (*client.ImageContext, error) {
	if o.ResolveImageFunc != nil {
		return o.ResolveImageFunc(ctx, imageID)
	}
	return &client.ImageContext{SceneID: uuid.New(), ProjectID: uuid.New()}, nil
}

func (o *stubOracle) ResolveScene(ctx context.Context, sceneID uuid.UUID) (uuid.UUID, error) {
	if o.ResolveSceneFunc != nil {
		return o.ResolveSceneFunc(ctx, sceneID)
	}
	return uuid.New(), nil
}

type stubResolver struct {
	ResolveTokenFunc func(ctx context.Context, token string) (*model.Identity, error)
}

func (r *stubResolver) ResolveToken(ctx context.Context, token string) (*model.Identity, error) {
	if r.ResolveTokenFunc != nil {
		return r.ResolveTokenFunc(ctx, token)
	}
	return &model.Identity{UserID: uuid.New(), Nickname: "tester"}, nil
}

type stubActivity struct {
	mu     sync.Mutex
	events []client.ActivityEvent
}

func (s *stubActivity) Record(_ context.Context, event client.ActivityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

type stubNotify struct {
	mu     sync.Mutex
	events []client.NotificationEvent
}

func (s *stubNotify) Notify(_ context.Context, event client.NotificationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func testHubConfig() config.HubConfig {
	return config.HubConfig{
		AuthTimeout:        time.Second,
		IdleAfter:          5 * time.Minute,
		AwayAfter:          15 * time.Minute,
		TypingTimeout:      10 * time.Second,
		CursorStaleAfter:   30 * time.Minute,
		UploadTTL:          time.Hour,
		DrawingTTL:         30 * time.Minute,
		PresenceSweepEvery: 30 * time.Second,
		TypingSweepEvery:   5 * time.Second,
		PositionSweepEvery: 5 * time.Minute,
		RoomSweepEvery:     5 * time.Minute,
		UploadSweepEvery:   time.Hour,
		DrawingSweepEvery:  30 * time.Minute,
		ConnAttemptLimit:   30,
		ConnAttemptWindow:  time.Minute,
	}
}

func newTestHub(t *testing.T, clock Clock) (*Hub, *stubOracle, *stubActivity, *stubNotify) {
	t.Helper()

	oracle := &stubOracle{}
	activity := &stubActivity{}
	notify := &stubNotify{}

	h := New(Options{
		Config:   testHubConfig(),
		Logger:   zap.NewNop(),
		Metrics:  metrics.NewWithRegistry(prometheus.NewRegistry()),
		Resolver: &stubResolver{},
		Oracle:   oracle,
		Activity: activity,
		Notify:   notify,
		Clock:    clock,
	})
	return h, oracle, activity, notify
}

func newTestIdentity(nickname string) model.Identity {
	return model.Identity{UserID: uuid.New(), Nickname: nickname}
}

// newTestConn builds a connection without a websocket behind it; deliveries
// land in the send buffer where tests can read them back.
func newTestConn(identity model.Identity) *Conn {
	return &Conn{
		ID:       uuid.New(),
		Identity: identity,
		send:     make(chan []byte, 64),
		topics:   make(map[model.Topic]struct{}),
	}
}

// connect registers the connection with the tracker the way the gateway
// would after a successful handshake.
func connect(h *Hub, identity model.Identity) *Conn {
	conn := newTestConn(identity)
	conn.hub = h
	h.tracker.AddConnection(identity, conn)
	return conn
}

// join puts the connection into a topic through the normal dispatch path.
func join(t *testing.T, h *Hub, c *Conn, topic model.Topic) {
	t.Helper()
	h.dispatch(c, &model.Frame{Type: "join", Topic: topic.String()})
	frames := drainFrames(c)
	if _, ok := frameWithEvent(frames, "joined"); !ok {
		t.Fatalf("join failed, got frames %+v", frames)
	}
}

type testWire struct {
	Event     string                 `json:"event"`
	Topic     string                 `json:"topic"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// drainFrames empties the connection's send buffer into decoded wire frames.
func drainFrames(c *Conn) []testWire {
	var out []testWire
	for {
		select {
		case raw := <-c.send:
			var frame testWire
			if err := json.Unmarshal(raw, &frame); err == nil {
				out = append(out, frame)
			}
		default:
			return out
		}
	}
}

func frameWithEvent(frames []testWire, event string) (testWire, bool) {
	for _, f := range frames {
		if f.Event == event {
			return f, true
		}
	}
	return testWire{}, false
}

func payloadJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}
