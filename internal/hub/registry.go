package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// member is one identity inside a room, with the set of its connections
// currently joined to the topic.
type member struct {
	identity model.Identity
	conns    map[uuid.UUID]struct{}
	joinedAt time.Time
}

type room struct {
	createdAt    time.Time
	lastActivity time.Time
	members      map[uuid.UUID]*member
}

// MemberSnapshot is a point-in-time view of one room member, used to seed
// newly-joined clients.
type MemberSnapshot struct {
	Identity model.Identity `json:"identity"`
	JoinedAt time.Time      `json:"joinedAt"`
}

// RoomRegistry tracks which identities are joined to which topics. A topic
// with zero members is removed immediately; no empty rooms linger between
// sweeps.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[model.Topic]*room
	clock Clock
}

func NewRoomRegistry(clock Clock) *RoomRegistry {
	if clock == nil {
		clock = SystemClock
	}
	return &RoomRegistry{
		rooms: make(map[model.Topic]*room),
		clock: clock,
	}
}

// Join adds a connection of the identity to the topic. Idempotent: joining
// twice with the same connection yields one membership. Returns whether
// this join made the identity a new member of the topic (the caller only
// broadcasts "member joined" in that case).
func (r *RoomRegistry) Join(topic model.Topic, identity model.Identity, connID uuid.UUID) (newMember bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	rm, ok := r.rooms[topic]
	if !ok {
		rm = &room{
			createdAt: now,
			members:   make(map[uuid.UUID]*member),
		}
		r.rooms[topic] = rm
	}
	rm.lastActivity = now

	m, ok := rm.members[identity.UserID]
	if !ok {
		m = &member{
			identity: identity,
			conns:    make(map[uuid.UUID]struct{}),
			joinedAt: now,
		}
		rm.members[identity.UserID] = m
		newMember = true
	}
	m.conns[connID] = struct{}{}

	return newMember
}

// Leave removes a connection from the topic. Returns whether the identity
// left the room entirely (its last connection in the topic departed) and
// whether the room was deleted because it became empty.
func (r *RoomRegistry) Leave(topic model.Topic, userID, connID uuid.UUID) (left, emptied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[topic]
	if !ok {
		return false, false
	}
	m, ok := rm.members[userID]
	if !ok {
		return false, false
	}

	delete(m.conns, connID)
	if len(m.conns) > 0 {
		return false, false
	}

	delete(rm.members, userID)
	left = true
	if len(rm.members) == 0 {
		delete(r.rooms, topic)
		emptied = true
	}
	return left, emptied
}

// Members returns the room's members ordered by join time.
func (r *RoomRegistry) Members(topic model.Topic) []MemberSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[topic]
	if !ok {
		return nil
	}

	out := make([]MemberSnapshot, 0, len(rm.members))
	for _, m := range rm.members {
		out = append(out, MemberSnapshot{Identity: m.identity, JoinedAt: m.joinedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].Identity.UserID.String() < out[j].Identity.UserID.String()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// MemberIDs returns the distinct identities in the topic, unordered.
func (r *RoomRegistry) MemberIDs(topic model.Topic) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[topic]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(rm.members))
	for id := range rm.members {
		out = append(out, id)
	}
	return out
}

// Contains reports whether the identity is a member of the topic.
func (r *RoomRegistry) Contains(topic model.Topic, userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[topic]
	if !ok {
		return false
	}
	_, ok = rm.members[userID]
	return ok
}

// MemberCount returns the number of distinct identities in the topic.
func (r *RoomRegistry) MemberCount(topic model.Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[topic]
	if !ok {
		return 0
	}
	return len(rm.members)
}

// TopicsOf returns every topic the identity is currently joined to.
func (r *RoomRegistry) TopicsOf(userID uuid.UUID) []model.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Topic
	for topic, rm := range r.rooms {
		if _, ok := rm.members[userID]; ok {
			out = append(out, topic)
		}
	}
	return out
}

// Touch stamps room activity for the identity's membership.
func (r *RoomRegistry) Touch(topic model.Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[topic]; ok {
		rm.lastActivity = r.clock.Now()
	}
}

// TopicCount returns the number of tracked topics.
func (r *RoomRegistry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// RemoveConnection drops the connection from every room it joined and
// returns, per topic, whether the identity left that room. Used on
// disconnect teardown.
func (r *RoomRegistry) RemoveConnection(userID, connID uuid.UUID) (departed []model.Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic, rm := range r.rooms {
		m, ok := rm.members[userID]
		if !ok {
			continue
		}
		if _, ok := m.conns[connID]; !ok {
			continue
		}
		delete(m.conns, connID)
		if len(m.conns) == 0 {
			delete(rm.members, userID)
			departed = append(departed, topic)
			if len(rm.members) == 0 {
				delete(r.rooms, topic)
			}
		}
	}
	return departed
}

// SweepEmpty removes rooms with no members. Rooms are already deleted
// inline on the last leave; the sweep is a safety net against missed
// teardowns and is idempotent.
func (r *RoomRegistry) SweepEmpty() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for topic, rm := range r.rooms {
		if len(rm.members) == 0 {
			delete(r.rooms, topic)
			removed++
		}
	}
	return removed
}
