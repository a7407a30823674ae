package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/collabcode/hub-service/internal/domain"

	"github.com/google/uuid"
)

const DefaultSequenceGrace = 5 * time.Minute

// Registry is the process-wide room membership map. It is the only shared
// mutable state of the hub; every mutation goes through its methods, the
// internal maps never leak. Locking is per room, the registry lock covers
// only the room table itself.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	retired map[string]retiredCounter

	grace time.Duration
	now   func() time.Time
	log   *slog.Logger
}

type room struct {
	mu      sync.Mutex
	members []*member // join order
	byConn  map[uuid.UUID]*member
	seq     uint64
	closed  bool
}

type member struct {
	domain.Participant
	presence domain.PresenceState
	lastSeen time.Time
}

// retiredCounter keeps a torn-down room's last sequence number for the grace
// window, so a fast destroy/recreate cycle never reuses numbers.
type retiredCounter struct {
	lastSeq   uint64
	expiresAt time.Time
}

func NewRegistry(grace time.Duration, log *slog.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultSequenceGrace
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		rooms:   make(map[string]*room),
		retired: make(map[string]retiredCounter),
		grace:   grace,
		now:     time.Now,
		log:     log.With(slog.String("component", "registry")),
	}
}

// Join adds the connection to the room, creating the room lazily. Joining
// twice is a no-op returning the existing presence. maxMembers <= 0 means
// unlimited.
func (r *Registry) Join(roomID string, p domain.Participant, maxMembers int64) (domain.PresenceState, error) {
	for {
		rm := r.getOrCreate(roomID)

		rm.mu.Lock()
		if rm.closed {
			// комната снесена между getOrCreate и Lock — пробуем заново
			rm.mu.Unlock()
			continue
		}
		if m, ok := rm.byConn[p.ConnID]; ok {
			st := m.presence
			rm.mu.Unlock()
			return st, nil
		}
		if maxMembers > 0 && int64(len(rm.members)) >= maxMembers {
			rm.mu.Unlock()
			return domain.PresenceState{}, domain.ErrRoomFull
		}

		m := &member{Participant: p, lastSeen: r.now()}
		if m.JoinedAt.IsZero() {
			m.JoinedAt = r.now()
		}
		m.presence = domain.PresenceState{LastUpdatedAt: r.now()}
		rm.members = append(rm.members, m)
		rm.byConn[p.ConnID] = m
		st := m.presence
		rm.mu.Unlock()

		r.log.Debug("joined room", "room", roomID, "conn", p.ConnID, "user", p.UserID)
		return st, nil
	}
}

// Leave removes the connection from the room. removed reports whether the
// connection was actually a member: leaving twice (or after a reconnect
// force-left the entry) returns false, and callers must not announce a
// user_left for a connection that was not removed here. An empty room is
// destroyed immediately; its sequence counter is retired for the grace window.
func (r *Registry) Leave(roomID string, connID uuid.UUID) (removed, becameEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	m, ok := rm.byConn[connID]
	if !ok {
		return false, false
	}
	delete(rm.byConn, connID)
	for i := range rm.members {
		if rm.members[i] == m {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			break
		}
	}

	if len(rm.members) > 0 {
		return true, false
	}
	rm.closed = true
	delete(r.rooms, roomID)
	r.retired[roomID] = retiredCounter{
		lastSeq:   rm.seq,
		expiresAt: r.now().Add(r.grace),
	}
	r.log.Debug("room destroyed", "room", roomID, "last_seq", rm.seq)
	return true, true
}

// UpdatePresence applies a partial presence update for the connection's own
// state. Only the owning connection's events reach this path.
func (r *Registry) UpdatePresence(roomID string, connID uuid.UUID, upd domain.PresenceUpdate) error {
	rm := r.get(roomID)
	if rm == nil {
		return domain.ErrNotAMember
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	m, ok := rm.byConn[connID]
	if !ok {
		return domain.ErrNotAMember
	}
	if upd.Cursor != nil {
		c := *upd.Cursor
		m.presence.Cursor = &c
	}
	if upd.IsTyping != nil {
		m.presence.IsTyping = *upd.IsTyping
	}
	m.presence.LastUpdatedAt = r.now()
	m.lastSeen = r.now()
	return nil
}

// Touch records inbound activity (pongs, events) for the connection, feeding
// the last_seen field of membership snapshots. Unknown members are ignored.
func (r *Registry) Touch(roomID string, connID uuid.UUID) {
	rm := r.get(roomID)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if m, ok := rm.byConn[connID]; ok {
		m.lastSeen = r.now()
	}
}

// MembersOf returns a join-ordered snapshot of the room's membership.
func (r *Registry) MembersOf(roomID string) []domain.Participant {
	rm := r.get(roomID)
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make([]domain.Participant, 0, len(rm.members))
	for _, m := range rm.members {
		out = append(out, m.Participant)
	}
	return out
}

// Snapshot returns membership with presence plus the last stamped sequence
// number, as one consistent view.
func (r *Registry) Snapshot(roomID string) ([]domain.MemberSnapshot, uint64) {
	rm := r.get(roomID)
	if rm == nil {
		return nil, 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make([]domain.MemberSnapshot, 0, len(rm.members))
	for _, m := range rm.members {
		out = append(out, domain.MemberSnapshot{
			UserID:     m.UserID,
			Username:   m.Username,
			ConnID:     m.ConnID,
			JoinedAt:   m.JoinedAt.Unix(),
			LastSeenAt: m.lastSeen.Unix(),
			Presence:   m.presence,
		})
	}
	return out, rm.seq
}

// NextSequence atomically increments and returns the room's counter.
func (r *Registry) NextSequence(roomID string) (uint64, error) {
	rm := r.get(roomID)
	if rm == nil {
		return 0, domain.ErrRoomNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.seq++
	return rm.seq, nil
}

// FindByUser reports the connection currently registered in the room for the
// given user, if any.
func (r *Registry) FindByUser(roomID string, userID int64) (uuid.UUID, bool) {
	rm := r.get(roomID)
	if rm == nil {
		return uuid.Nil, false
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	for _, m := range rm.members {
		if m.UserID == userID {
			return m.ConnID, true
		}
	}
	return uuid.Nil, false
}

// Run sweeps expired retired counters until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepRetired()
		}
	}
}

func (r *Registry) sweepRetired() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rc := range r.retired {
		if now.After(rc.expiresAt) {
			delete(r.retired, id)
		}
	}
}

func (r *Registry) get(roomID string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

func (r *Registry) getOrCreate(roomID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[roomID]; ok {
		return rm
	}
	rm := &room{byConn: make(map[uuid.UUID]*member)}
	if rc, ok := r.retired[roomID]; ok {
		if r.now().Before(rc.expiresAt) {
			rm.seq = rc.lastSeq
		}
		delete(r.retired, roomID)
	}
	r.rooms[roomID] = rm
	r.log.Debug("room created", "room", roomID, "seq_from", rm.seq)
	return rm
}
