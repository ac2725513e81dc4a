package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// Sweeper drives the hub's time-based lifecycle transitions. The
// high-frequency sweeps (presence, typing) run on plain tickers; the slow
// housekeeping sweeps (stale positions, empty rooms, abandoned sessions)
// run on a cron schedule.
type Sweeper struct {
	hub    *Hub
	logger *zap.Logger
	cron   *cron.Cron
	stop   chan struct{}
}

func NewSweeper(h *Hub) *Sweeper {
	return &Sweeper{
		hub:    h,
		logger: h.logger.Named("sweeper"),
		cron:   cron.New(),
		stop:   make(chan struct{}),
	}
}

func (s *Sweeper) Start() error {
	go s.tick(s.hub.cfg.PresenceSweepEvery, s.sweepPresence)
	go s.tick(s.hub.cfg.TypingSweepEvery, s.sweepTyping)

	jobs := []struct {
		spec string
		name string
		run  func()
	}{
		{"@every " + s.hub.cfg.PositionSweepEvery.String(), "positions", s.sweepPositions},
		{"@every " + s.hub.cfg.RoomSweepEvery.String(), "rooms", s.sweepRooms},
		{"@every " + s.hub.cfg.UploadSweepEvery.String(), "uploads", s.sweepUploads},
		{"@every " + s.hub.cfg.DrawingSweepEvery.String(), "drawings", s.sweepDrawings},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			defer s.recoverSweep(job.name)
			job.run()
		}); err != nil {
			return err
		}
	}
	s.cron.Start()

	s.logger.Info("lifecycle sweeper started",
		zap.Duration("presence_every", s.hub.cfg.PresenceSweepEvery),
		zap.Duration("typing_every", s.hub.cfg.TypingSweepEvery))
	return nil
}

func (s *Sweeper) Stop() {
	close(s.stop)
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("lifecycle sweeper stopped")
}

func (s *Sweeper) tick(every time.Duration, run func()) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			func() {
				defer s.recoverSweep("tick")
				run()
			}()
		case <-s.stop:
			return
		}
	}
}

// recoverSweep keeps one failing sweep from taking the others down with it.
func (s *Sweeper) recoverSweep(name string) {
	if r := recover(); r != nil {
		s.logger.Error("sweep panic recovered",
			zap.String("sweep", name),
			zap.Any("panic", r))
	}
}

// sweepPresence demotes inactive identities: active -> idle after IdleAfter,
// idle -> away after AwayAfter. Each demotion is broadcast like a
// client-driven status change.
func (s *Sweeper) sweepPresence() {
	transitions := s.hub.tracker.SweepIdle(s.hub.cfg.IdleAfter, s.hub.cfg.AwayAfter)
	for i := range transitions {
		s.hub.broadcastTransition(&transitions[i])
		s.hub.metrics.SweepEvictions.WithLabelValues("presence").Inc()
	}
	if len(transitions) > 0 {
		s.logger.Debug("presence sweep demoted identities", zap.Int("count", len(transitions)))
	}
}

// sweepTyping clears typing flags whose owner went silent without sending
// a stop, and tells the room so indicators do not stick.
func (s *Sweeper) sweepTyping() {
	expired := s.hub.tracker.SweepTyping(s.hub.cfg.TypingTimeout)
	for _, exp := range expired {
		s.hub.router.Route(s.hub.typingStoppedEnvelope(exp))
		s.hub.metrics.SweepEvictions.WithLabelValues("typing").Inc()
	}
}

func (s *Sweeper) sweepPositions() {
	n := s.hub.tracker.SweepStalePositions(s.hub.cfg.CursorStaleAfter)
	if n > 0 {
		s.hub.metrics.SweepEvictions.WithLabelValues("positions").Add(float64(n))
		s.logger.Debug("stale cursor/viewport entries dropped", zap.Int("count", n))
	}
}

func (s *Sweeper) sweepRooms() {
	n := s.hub.registry.SweepEmpty()
	if n > 0 {
		s.hub.metrics.SweepEvictions.WithLabelValues("rooms").Add(float64(n))
	}
	s.hub.metrics.RoomsActive.Set(float64(s.hub.registry.TopicCount()))
}

// sweepUploads abandons upload sessions past the TTL. Watchers get the same
// upload_failed they would see on an explicit error, with a timeout reason.
func (s *Sweeper) sweepUploads() {
	for _, session := range s.hub.uploads.SweepExpired(s.hub.cfg.UploadTTL) {
		s.hub.metrics.SweepEvictions.WithLabelValues("uploads").Inc()
		s.hub.router.Route(&model.Envelope{
			Event: "upload_failed",
			Payload: map[string]interface{}{
				"sessionId": session.SessionID,
				"userId":    session.UserID.String(),
				"fileName":  session.FileName,
				"reason":    "timeout",
			},
			Topics:     []model.Topic{session.Topic},
			Mode:       model.BroadcastIncludeOrigin,
			OriginUser: session.UserID,
			OriginConn: uuid.Nil,
			Timestamp:  s.hub.clock.Now(),
		})
	}
}

// sweepDrawings ends drawing sessions whose stream stalled. The stroke is
// discarded; peers see the session end exactly as if the author closed it.
func (s *Sweeper) sweepDrawings() {
	for _, session := range s.hub.drawings.SweepExpired(s.hub.cfg.DrawingTTL) {
		s.hub.metrics.SweepEvictions.WithLabelValues("drawings").Inc()
		s.hub.router.Route(&model.Envelope{
			Event: "session_ended",
			Payload: map[string]interface{}{
				"sessionId":        session.SessionID,
				"userId":           session.UserID.String(),
				"saveAsAnnotation": false,
				"pointCount":       len(session.Points),
				"reason":           "timeout",
			},
			Topics:     []model.Topic{session.Topic},
			Mode:       model.BroadcastIncludeOrigin,
			OriginUser: session.UserID,
			OriginConn: uuid.Nil,
			Timestamp:  s.hub.clock.Now(),
		})
	}
}
