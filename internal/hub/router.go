package hub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/metrics"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// EventRouter fans envelopes out to connections. Delivery is best-effort:
// a connection that disappeared or has a full buffer is skipped, never an
// error. Every routed envelope is additionally published to Redis per-topic
// channels so an external consumer (or a future multi-process layer) can
// observe the stream; that publish is fire-and-forget and off the delivery
// path.
type EventRouter struct {
	registry *RoomRegistry
	tracker  *PresenceTracker
	redis    *redis.Client
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewEventRouter(registry *RoomRegistry, tracker *PresenceTracker, redisClient *redis.Client, logger *zap.Logger, m *metrics.Metrics) *EventRouter {
	return &EventRouter{
		registry: registry,
		tracker:  tracker,
		redis:    redisClient,
		logger:   logger,
		metrics:  m,
	}
}

// Route resolves the envelope's recipients and delivers to each.
func (r *EventRouter) Route(env *model.Envelope) {
	payload, err := env.Encode()
	if err != nil {
		r.logger.Error("failed to encode envelope",
			zap.String("event", env.Event),
			zap.Error(err))
		return
	}

	for _, conn := range r.resolve(env) {
		if !conn.Enqueue(payload) {
			r.metrics.EventsDroppedTotal.Inc()
			r.logger.Debug("dropped delivery, send buffer full",
				zap.String("event", env.Event),
				zap.String("conn_id", conn.ID.String()))
		}
	}

	r.metrics.EventsRoutedTotal.WithLabelValues(env.Event).Inc()
	r.publish(env, payload)
}

// resolve maps the envelope's targeting onto live connections.
func (r *EventRouter) resolve(env *model.Envelope) []*Conn {
	if env.Mode == model.DirectToIdentity {
		return r.tracker.ConnectionsOf(env.TargetUser)
	}

	// Union the member identities of every target topic, then map each to
	// its live connection set via the multiplexing table.
	seen := make(map[uuid.UUID]struct{})
	var conns []*Conn
	for _, topic := range env.Topics {
		for _, userID := range r.registry.MemberIDs(topic) {
			if _, ok := seen[userID]; ok {
				continue
			}
			seen[userID] = struct{}{}
			conns = append(conns, r.tracker.ConnectionsOf(userID)...)
		}
	}

	if env.Mode == model.BroadcastExcludeOrigin && env.OriginConn != uuid.Nil {
		filtered := conns[:0]
		for _, conn := range conns {
			// Only the originating connection is excluded; other tabs of
			// the same identity still receive the event.
			if conn.ID == env.OriginConn {
				continue
			}
			filtered = append(filtered, conn)
		}
		conns = filtered
	}

	return conns
}

func (r *EventRouter) publish(env *model.Envelope, payload []byte) {
	if r.redis == nil {
		return
	}

	topics := make([]model.Topic, len(env.Topics))
	copy(topics, env.Topics)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		for _, topic := range topics {
			if err := r.redis.Publish(ctx, "collab:"+topic.String(), payload).Err(); err != nil {
				r.logger.Debug("failed to publish envelope to redis",
					zap.String("topic", topic.String()),
					zap.Error(err))
				return
			}
		}
	}()
}
