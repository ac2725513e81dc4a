package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// UploadStore tracks in-progress upload sessions keyed by a caller-supplied
// session id. Entries die on complete/error or when the sweep finds them
// older than the TTL.
type UploadStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.UploadSession
	clock    Clock
}

func NewUploadStore(clock Clock) *UploadStore {
	if clock == nil {
		clock = SystemClock
	}
	return &UploadStore{
		sessions: make(map[string]*model.UploadSession),
		clock:    clock,
	}
}

func (s *UploadStore) Start(sessionID string, userID uuid.UUID, topic model.Topic, fileName string, totalSize int64) (*model.UploadSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId required", ErrValidation)
	}
	if totalSize < 0 {
		return nil, fmt.Errorf("%w: totalSize must be non-negative", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		if existing.UserID != userID {
			return nil, ErrNotSessionOwner
		}
		return nil, fmt.Errorf("%w: session %q already active", ErrValidation, sessionID)
	}

	now := s.clock.Now()
	session := &model.UploadSession{
		SessionID: sessionID,
		UserID:    userID,
		Topic:     topic,
		FileName:  fileName,
		TotalSize: totalSize,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = session
	snapshot := *session
	return &snapshot, nil
}

// Progress updates bytesDone. Only the owning identity may report progress.
func (s *UploadStore) Progress(sessionID string, userID uuid.UUID, bytesDone int64) (*model.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	session.BytesDone = bytesDone
	session.UpdatedAt = s.clock.Now()
	snapshot := *session
	return &snapshot, nil
}

// Finish removes the session on completion or error.
func (s *UploadStore) Finish(sessionID string, userID uuid.UUID) (*model.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	delete(s.sessions, sessionID)
	return session, nil
}

// SweepExpired removes sessions older than ttl and returns them so the
// caller can broadcast timeout events.
func (s *UploadStore) SweepExpired(ttl time.Duration) []*model.UploadSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var out []*model.UploadSession
	for id, session := range s.sessions {
		if now.Sub(session.StartedAt) >= ttl {
			delete(s.sessions, id)
			out = append(out, session)
		}
	}
	return out
}

func (s *UploadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// DrawingStore buffers in-progress freehand strokes. The buffer exists for
// the swept-timeout safety net and to enforce that only the owning identity
// appends points; the live stream to peers is relayed by the handler, not
// reconstructed from here.
type DrawingStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.DrawingSession
	clock    Clock
}

func NewDrawingStore(clock Clock) *DrawingStore {
	if clock == nil {
		clock = SystemClock
	}
	return &DrawingStore{
		sessions: make(map[string]*model.DrawingSession),
		clock:    clock,
	}
}

func (s *DrawingStore) Start(sessionID string, userID uuid.UUID, topic model.Topic, tool, color string, width float64) (*model.DrawingSession, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		if existing.UserID != userID {
			return nil, ErrNotSessionOwner
		}
		return nil, fmt.Errorf("%w: session %q already active", ErrValidation, sessionID)
	}

	now := s.clock.Now()
	session := &model.DrawingSession{
		SessionID: sessionID,
		UserID:    userID,
		Topic:     topic,
		Tool:      tool,
		Color:     color,
		Width:     width,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sessionID] = session
	snapshot := *session
	return &snapshot, nil
}

// AppendPoints buffers stroke points. Rejected without mutation when the
// caller does not own the session.
func (s *DrawingStore) AppendPoints(sessionID string, userID uuid.UUID, points []model.DrawingPoint) (*model.DrawingSession, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: points required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	session.Points = append(session.Points, points...)
	session.UpdatedAt = s.clock.Now()
	snapshot := *session
	return &snapshot, nil
}

// End removes the session regardless of whether the caller persists the
// stroke as an annotation; persistence is the caller's concern.
func (s *DrawingStore) End(sessionID string, userID uuid.UUID) (*model.DrawingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	delete(s.sessions, sessionID)
	return session, nil
}

// SweepExpired removes sessions whose last update is older than ttl.
func (s *DrawingStore) SweepExpired(ttl time.Duration) []*model.DrawingSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var out []*model.DrawingSession
	for id, session := range s.sessions {
		if now.Sub(session.UpdatedAt) >= ttl {
			delete(s.sessions, id)
			out = append(out, session)
		}
	}
	return out
}

func (s *DrawingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
