package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// stateKey scopes advisory cursor/viewport state to (topic, identity).
type stateKey struct {
	topic model.Topic
	user  uuid.UUID
}

// typingKey scopes typing indicators to (topic, context). Context
// distinguishes e.g. a comment box from a chat input inside one topic.
type typingKey struct {
	topic   model.Topic
	context string
}

// StatusTransition records one presence demotion or promotion.
type StatusTransition struct {
	UserID uuid.UUID
	From   model.PresenceStatus
	To     model.PresenceStatus
}

// TypingExpiry records one typing entry dropped by the sweep.
type TypingExpiry struct {
	Topic   model.Topic
	Context string
	UserID  uuid.UUID
}

// PresenceTracker owns all ephemeral per-identity state: the presence
// record, the connection multiplexing table (identity -> live connections),
// topic-scoped cursors/viewports, and typing sets. All state dies with the
// identity's last connection.
type PresenceTracker struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]*model.UserPresence
	conns     map[uuid.UUID]map[uuid.UUID]*Conn
	cursors   map[stateKey]*model.CursorState
	viewports map[stateKey]*model.ViewportState
	typing    map[typingKey]map[uuid.UUID]time.Time
	clock     Clock
}

func NewPresenceTracker(clock Clock) *PresenceTracker {
	if clock == nil {
		clock = SystemClock
	}
	return &PresenceTracker{
		entries:   make(map[uuid.UUID]*model.UserPresence),
		conns:     make(map[uuid.UUID]map[uuid.UUID]*Conn),
		cursors:   make(map[stateKey]*model.CursorState),
		viewports: make(map[stateKey]*model.ViewportState),
		typing:    make(map[typingKey]map[uuid.UUID]time.Time),
		clock:     clock,
	}
}

// AddConnection registers a live connection under its identity. Returns
// true when this is the identity's first connection, i.e. the presence
// record was just created.
func (t *PresenceTracker) AddConnection(identity model.Identity, conn *Conn) (first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if _, ok := t.entries[identity.UserID]; !ok {
		t.entries[identity.UserID] = &model.UserPresence{
			Identity:     identity,
			Status:       model.PresenceActive,
			LastActivity: now,
			ConnectedAt:  now,
		}
		first = true
	}

	set, ok := t.conns[identity.UserID]
	if !ok {
		set = make(map[uuid.UUID]*Conn)
		t.conns[identity.UserID] = set
	}
	set[conn.ID] = conn
	return first
}

// RemoveConnection drops a connection from the multiplexing table. When it
// was the identity's last connection, the presence record and every piece
// of ephemeral state owned by the identity are deleted; this is terminal.
func (t *PresenceTracker) RemoveConnection(userID, connID uuid.UUID) (last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.conns[userID]
	if !ok {
		return false
	}
	delete(set, connID)
	if len(set) > 0 {
		return false
	}

	delete(t.conns, userID)
	delete(t.entries, userID)
	for key := range t.cursors {
		if key.user == userID {
			delete(t.cursors, key)
		}
	}
	for key := range t.viewports {
		if key.user == userID {
			delete(t.viewports, key)
		}
	}
	for key, users := range t.typing {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.typing, key)
		}
	}
	return true
}

// ConnectionsOf returns the identity's live connections.
func (t *PresenceTracker) ConnectionsOf(userID uuid.UUID) []*Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set := t.conns[userID]
	out := make([]*Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// ConnectionCount returns the identity's live connection count.
func (t *PresenceTracker) ConnectionCount(userID uuid.UUID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns[userID])
}

// EntryCount returns the number of identities with a presence record.
func (t *PresenceTracker) EntryCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns a copy of the identity's presence record.
func (t *PresenceTracker) Snapshot(userID uuid.UUID) (model.UserPresence, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[userID]
	if !ok {
		return model.UserPresence{}, false
	}
	return *entry, true
}

// Online returns a snapshot of every tracked identity, optionally filtered
// to those located in the given project.
func (t *PresenceTracker) Online(projectID *uuid.UUID) []model.UserPresence {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.UserPresence, 0, len(t.entries))
	for _, entry := range t.entries {
		if projectID != nil {
			if entry.Location.ProjectID == nil || *entry.Location.ProjectID != *projectID {
				continue
			}
		}
		out = append(out, *entry)
	}
	return out
}

// Touch stamps activity on the identity and promotes idle/away back to
// active. The returned transition is non-nil when the status changed and
// the caller must broadcast it.
func (t *PresenceTracker) Touch(userID uuid.UUID) *StatusTransition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.touchLocked(userID)
}

func (t *PresenceTracker) touchLocked(userID uuid.UUID) *StatusTransition {
	entry, ok := t.entries[userID]
	if !ok {
		return nil
	}
	entry.LastActivity = t.clock.Now()
	if entry.Status == model.PresenceActive {
		return nil
	}
	from := entry.Status
	entry.Status = model.PresenceActive
	return &StatusTransition{UserID: userID, From: from, To: model.PresenceActive}
}

// SetStatus applies an explicit client-requested status. Returns the
// transition, or nil when the status did not change.
func (t *PresenceTracker) SetStatus(userID uuid.UUID, status model.PresenceStatus) *StatusTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[userID]
	if !ok {
		return nil
	}
	entry.LastActivity = t.clock.Now()
	if entry.Status == status {
		return nil
	}
	from := entry.Status
	entry.Status = status
	return &StatusTransition{UserID: userID, From: from, To: status}
}

// SetLocation moves the identity inside the project hierarchy. Counts as
// activity.
func (t *PresenceTracker) SetLocation(userID uuid.UUID, loc model.Location) *StatusTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[userID]
	if !ok {
		return nil
	}
	entry.Location = loc
	return t.touchLocked(userID)
}

// SetCursor updates topic-scoped cursor state, last-write-wins. Counts as
// activity. Stale out-of-order updates are simply overwritten.
func (t *PresenceTracker) SetCursor(topic model.Topic, userID uuid.UUID, x, y float64, tool, color string) *StatusTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.cursors[stateKey{topic: topic, user: userID}] = &model.CursorState{
		X: x, Y: y, Tool: tool, Color: color, UpdatedAt: now,
	}
	if entry, ok := t.entries[userID]; ok {
		if tool != "" {
			entry.Tool = tool
		}
		if color != "" {
			entry.Color = color
		}
	}
	return t.touchLocked(userID)
}

// SetViewport updates topic-scoped viewport state, last-write-wins.
func (t *PresenceTracker) SetViewport(topic model.Topic, userID uuid.UUID, x, y, zoom float64) *StatusTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.viewports[stateKey{topic: topic, user: userID}] = &model.ViewportState{
		X: x, Y: y, Zoom: zoom, UpdatedAt: t.clock.Now(),
	}
	return t.touchLocked(userID)
}

// StartTyping adds the identity to the (topic, context) typing set and
// refreshes its deadline on repeat calls.
func (t *PresenceTracker) StartTyping(topic model.Topic, context string, userID uuid.UUID) (started bool, transition *StatusTransition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{topic: topic, context: context}
	users, ok := t.typing[key]
	if !ok {
		users = make(map[uuid.UUID]time.Time)
		t.typing[key] = users
	}
	_, already := users[userID]
	users[userID] = t.clock.Now()

	if entry, ok := t.entries[userID]; ok {
		entry.IsTyping = true
		entry.TypingContext = context
	}
	return !already, t.touchLocked(userID)
}

// StopTyping removes the identity from the (topic, context) typing set.
func (t *PresenceTracker) StopTyping(topic model.Topic, context string, userID uuid.UUID) (stopped bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{topic: topic, context: context}
	users, ok := t.typing[key]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.typing, key)
	}

	if entry, ok := t.entries[userID]; ok {
		entry.IsTyping = false
		entry.TypingContext = ""
	}
	return true
}

// TypingUsers lists identities typing in (topic, context).
func (t *PresenceTracker) TypingUsers(topic model.Topic, context string) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := t.typing[typingKey{topic: topic, context: context}]
	out := make([]uuid.UUID, 0, len(users))
	for id := range users {
		out = append(out, id)
	}
	return out
}

// SweepIdle demotes active entries past idleAfter to idle and idle entries
// past awayAfter to away. Explicitly-set away entries are left alone.
func (t *PresenceTracker) SweepIdle(idleAfter, awayAfter time.Duration) []StatusTransition {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var out []StatusTransition
	for userID, entry := range t.entries {
		elapsed := now.Sub(entry.LastActivity)
		switch entry.Status {
		case model.PresenceActive:
			if elapsed >= idleAfter {
				entry.Status = model.PresenceIdle
				out = append(out, StatusTransition{UserID: userID, From: model.PresenceActive, To: model.PresenceIdle})
			}
		case model.PresenceIdle:
			if elapsed >= awayAfter {
				entry.Status = model.PresenceAway
				out = append(out, StatusTransition{UserID: userID, From: model.PresenceIdle, To: model.PresenceAway})
			}
		}
	}
	return out
}

// SweepTyping drops typing entries older than timeout. The caller emits
// "typing stopped" for each expiry so no client ever shows a permanently
// stuck indicator.
func (t *PresenceTracker) SweepTyping(timeout time.Duration) []TypingExpiry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var out []TypingExpiry
	for key, users := range t.typing {
		for userID, since := range users {
			if now.Sub(since) >= timeout {
				delete(users, userID)
				out = append(out, TypingExpiry{Topic: key.topic, Context: key.context, UserID: userID})
				if entry, ok := t.entries[userID]; ok {
					entry.IsTyping = false
					entry.TypingContext = ""
				}
			}
		}
		if len(users) == 0 {
			delete(t.typing, key)
		}
	}
	return out
}

// SweepStalePositions discards cursor/viewport entries older than
// staleAfter to bound memory. Purely advisory state; no event is emitted.
func (t *PresenceTracker) SweepStalePositions(staleAfter time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	removed := 0
	for key, cursor := range t.cursors {
		if now.Sub(cursor.UpdatedAt) >= staleAfter {
			delete(t.cursors, key)
			removed++
		}
	}
	for key, vp := range t.viewports {
		if now.Sub(vp.UpdatedAt) >= staleAfter {
			delete(t.viewports, key)
			removed++
		}
	}
	return removed
}
