package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/config"
	"github.com/gatat123/studioo-backend-sub000/internal/metrics"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PresenceMirrorStore is the advisory durable mirror of presence. All calls
// are issued fire-and-forget off the hot path; a nil store disables
// mirroring entirely.
type PresenceMirrorStore interface {
	SetStatus(userID uuid.UUID, projectID *uuid.UUID, status model.PresenceStatus) error
	SetOffline(userID uuid.UUID) error
}

type handlerFunc func(c *Conn, frame *model.Frame)

// Options wires the hub's collaborators. Registry, tracker, session stores
// and router are owned by the hub itself: created at hub start, torn down
// at shutdown, never process-wide statics.
type Options struct {
	Config   config.HubConfig
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Resolver client.IdentityResolver
	Oracle   client.MembershipOracle
	Activity client.ActivitySink
	Notify   client.NotificationSink
	Mirror   PresenceMirrorStore
	Redis    *redis.Client
	Clock    Clock
}

// Hub is the real-time collaboration core: it authenticates connections,
// gates topic joins, tracks rooms and presence, and fans domain events out
// to topic members.
type Hub struct {
	cfg     config.HubConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	registry *RoomRegistry
	tracker  *PresenceTracker
	uploads  *UploadStore
	drawings *DrawingStore
	router   *EventRouter
	access   *AccessController
	limiter  *attemptLimiter

	resolver client.IdentityResolver
	oracle   client.MembershipOracle
	activity client.ActivitySink
	notify   client.NotificationSink
	mirror   PresenceMirrorStore
	redis    *redis.Client

	clock    Clock
	handlers map[string]handlerFunc
}

func New(opts Options) *Hub {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}

	registry := NewRoomRegistry(clock)
	tracker := NewPresenceTracker(clock)

	h := &Hub{
		cfg:      opts.Config,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		registry: registry,
		tracker:  tracker,
		uploads:  NewUploadStore(clock),
		drawings: NewDrawingStore(clock),
		router:   NewEventRouter(registry, tracker, opts.Redis, opts.Logger, opts.Metrics),
		access:   NewAccessController(opts.Oracle, opts.Logger),
		limiter:  newAttemptLimiter(opts.Config.ConnAttemptLimit, opts.Config.ConnAttemptWindow),
		resolver: opts.Resolver,
		oracle:   opts.Oracle,
		activity: opts.Activity,
		notify:   opts.Notify,
		mirror:   opts.Mirror,
		redis:    opts.Redis,
		clock:    clock,
	}
	h.handlers = h.buildHandlerTable()
	return h
}

// Registry exposes the room registry for the REST query surface.
func (h *Hub) Registry() *RoomRegistry { return h.registry }

// Tracker exposes the presence tracker for the REST query surface.
func (h *Hub) Tracker() *PresenceTracker { return h.tracker }

// HandleWebSocket upgrades the request and runs the connection lifecycle.
// The token comes from the ?token query parameter or, when absent, from a
// first "authenticate" frame sent within the auth timeout.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	if !h.limiter.allow(c.ClientIP()) {
		h.metrics.WSRateLimited.Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connection attempts"})
		return
	}

	token := c.Query("token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	identity, err := h.authenticate(c.Request.Context(), ws, token)
	if err != nil {
		h.metrics.WSAuthFailures.Inc()
		h.refuse(ws, err)
		return
	}

	conn := newConn(ws, *identity, h)
	first := h.tracker.AddConnection(*identity, conn)
	h.metrics.WSConnectionsTotal.Inc()
	h.metrics.WSActiveConnections.Inc()
	h.metrics.PresenceEntries.Set(float64(h.tracker.EntryCount()))

	h.logger.Info("connection established",
		zap.String("conn_id", conn.ID.String()),
		zap.String("user_id", identity.UserID.String()),
		zap.Bool("first_connection", first))

	if first {
		h.mirrorStatus(identity.UserID, nil, model.PresenceActive)
	}

	conn.EnqueueEnvelope(&model.Envelope{
		Event: "connection_confirmed",
		Payload: map[string]interface{}{
			"connectionId": conn.ID.String(),
			"identity":     identity,
			"serverTime":   h.clock.Now(),
		},
		Timestamp: h.clock.Now(),
	})

	go conn.writePump()
	go conn.readPump()
}

// authenticate resolves the connection's identity. The token arrives either
// as a query parameter or in a first "authenticate" frame; in both cases
// the handshake is bounded by AuthTimeout and no state exists anywhere
// downstream until it succeeds.
func (h *Hub) authenticate(ctx context.Context, ws *websocket.Conn, token string) (*model.Identity, error) {
	if token == "" {
		ws.SetReadDeadline(time.Now().Add(h.cfg.AuthTimeout))
		_, message, err := ws.ReadMessage()
		if err != nil {
			return nil, ErrInvalidToken
		}
		ws.SetReadDeadline(time.Time{})

		var frame model.Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Type != "authenticate" {
			return nil, ErrInvalidToken
		}
		var payload struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.Token == "" {
			return nil, ErrInvalidToken
		}
		token = payload.Token
	}

	resolveCtx, cancel := context.WithTimeout(ctx, h.cfg.AuthTimeout)
	defer cancel()

	identity, err := h.resolver.ResolveToken(resolveCtx, token)
	if err != nil {
		h.logger.Warn("token resolution failed", zap.Error(err))
		return nil, ErrInvalidToken
	}
	return identity, nil
}

func (h *Hub) refuse(ws *websocket.Conn, err error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"event": "connection_refused",
		"payload": map[string]string{
			"code":    errorCode(err),
			"message": err.Error(),
		},
	})
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	ws.WriteMessage(websocket.TextMessage, payload)
	ws.Close()
}

// teardown unwinds every structure the connection touched. Idempotent by
// construction; a second call finds nothing left to remove.
func (h *Hub) teardown(c *Conn) {
	departed := h.registry.RemoveConnection(c.Identity.UserID, c.ID)
	last := h.tracker.RemoveConnection(c.Identity.UserID, c.ID)

	for _, topic := range departed {
		h.router.Route(&model.Envelope{
			Event: "user_left",
			Payload: map[string]interface{}{
				"userId": c.Identity.UserID.String(),
				"topic":  topic.String(),
				"reason": "disconnected",
			},
			Topics:     []model.Topic{topic},
			Mode:       model.BroadcastExcludeOrigin,
			OriginUser: c.Identity.UserID,
			OriginConn: c.ID,
			Timestamp:  h.clock.Now(),
		})
	}

	if last {
		h.mirrorOffline(c.Identity.UserID)
	}

	c.close()
	h.metrics.WSActiveConnections.Dec()
	h.metrics.RoomsActive.Set(float64(h.registry.TopicCount()))
	h.metrics.PresenceEntries.Set(float64(h.tracker.EntryCount()))

	h.logger.Info("connection closed",
		zap.String("conn_id", c.ID.String()),
		zap.String("user_id", c.Identity.UserID.String()),
		zap.Int("topics_departed", len(departed)),
		zap.Bool("last_connection", last))
}

// dispatch routes one inbound frame through the handler table. Handler
// panics are contained so one bad frame cannot kill the connection loop.
func (h *Hub) dispatch(c *Conn, frame *model.Frame) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panic recovered",
				zap.String("type", frame.Type),
				zap.Any("panic", r),
				zap.Stack("stacktrace"))
			h.sendError(c, frame.Type, ErrValidation, "internal handler failure")
		}
	}()

	handler, ok := h.handlers[frame.Type]
	if !ok {
		h.sendError(c, frame.Type, ErrValidation, "unknown event type")
		return
	}
	handler(c, frame)
}

// sendError delivers a scoped error envelope to the origin connection only.
// Errors are never broadcast.
func (h *Hub) sendError(c *Conn, inReplyTo string, err error, message string) {
	if message == "" {
		message = err.Error()
	}
	c.EnqueueEnvelope(&model.Envelope{
		Event: "error",
		Payload: map[string]interface{}{
			"code":    errorCode(err),
			"message": message,
			"in":      inReplyTo,
		},
		Timestamp: h.clock.Now(),
	})
}

// presenceKeyTTL bounds how long a redis presence key outlives its last
// write, so a crashed instance never leaves users pinned online.
const presenceKeyTTL = time.Hour

func (h *Hub) mirrorStatus(userID uuid.UUID, projectID *uuid.UUID, status model.PresenceStatus) {
	if h.mirror != nil {
		go func() {
			if err := h.mirror.SetStatus(userID, projectID, status); err != nil {
				h.logger.Debug("presence mirror write failed",
					zap.String("user_id", userID.String()),
					zap.Error(err))
			}
		}()
	}
	if h.redis != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
			defer cancel()
			key := "presence:" + userID.String()
			if err := h.redis.Set(ctx, key, string(status), presenceKeyTTL).Err(); err != nil {
				h.logger.Debug("presence key write failed",
					zap.String("user_id", userID.String()),
					zap.Error(err))
			}
		}()
	}
}

func (h *Hub) mirrorOffline(userID uuid.UUID) {
	if h.mirror != nil {
		go func() {
			if err := h.mirror.SetOffline(userID); err != nil {
				h.logger.Debug("presence mirror write failed",
					zap.String("user_id", userID.String()),
					zap.Error(err))
			}
		}()
	}
	if h.redis != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
			defer cancel()
			if err := h.redis.Del(ctx, "presence:"+userID.String()).Err(); err != nil {
				h.logger.Debug("presence key delete failed",
					zap.String("user_id", userID.String()),
					zap.Error(err))
			}
		}()
	}
}

// broadcastTransition emits presence_updated for a status transition to
// every topic the identity currently occupies. Origin included: the user's
// own tabs want the change too.
func (h *Hub) broadcastTransition(tr *StatusTransition) {
	if tr == nil {
		return
	}
	topics := h.registry.TopicsOf(tr.UserID)
	if len(topics) == 0 {
		return
	}
	h.router.Route(&model.Envelope{
		Event: "presence_updated",
		Payload: map[string]interface{}{
			"userId":     tr.UserID.String(),
			"status":     tr.To,
			"changeType": "status_changed",
		},
		Topics:     topics,
		Mode:       model.BroadcastIncludeOrigin,
		OriginUser: tr.UserID,
		Timestamp:  h.clock.Now(),
	})
	h.mirrorStatus(tr.UserID, nil, tr.To)
}

// touchActivity stamps activity for any activity-bearing event and
// broadcasts the promotion back to active when one happened.
func (h *Hub) touchActivity(userID uuid.UUID) {
	h.broadcastTransition(h.tracker.Touch(userID))
}
