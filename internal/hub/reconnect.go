package hub

import (
	"log/slog"

	"github.com/collabcode/hub-service/internal/domain"

	"github.com/google/uuid"
)

// ReplayState is what a (re)connecting client needs to reconcile: the
// current membership with presence and the last stamped sequence number.
// No event history is replayed; interim events across a disconnect are lost.
type ReplayState struct {
	Members      []domain.MemberSnapshot
	LastSequence uint64
}

// StaleCloseFunc closes a superseded connection's transport without emitting
// a user_left to the room.
type StaleCloseFunc func(connID uuid.UUID)

// Tracker bridges a disconnect/reconnect pair. A new connection from a user
// already registered in the room supersedes the old one, so a logical user
// never holds two membership entries.
type Tracker struct {
	registry   *Registry
	closeStale StaleCloseFunc
	log        *slog.Logger
}

func NewTracker(registry *Registry, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		registry: registry,
		log:      log.With(slog.String("component", "reconnect")),
	}
}

func (t *Tracker) SetStaleCloseFunc(fn StaleCloseFunc) { t.closeStale = fn }

// Reconnect registers connID in the room, force-leaving any prior connection
// of the same user first. superseded reports whether such a prior entry
// existed; in that case no membership change is visible to other members and
// callers must not announce the join.
func (t *Tracker) Reconnect(id domain.Identity, roomID string, connID uuid.UUID, maxMembers int64) (st ReplayState, superseded bool, err error) {
	if prior, ok := t.registry.FindByUser(roomID, id.UserID); ok && prior != connID {
		t.registry.Leave(roomID, prior)
		superseded = true
		t.log.Info("superseded stale connection",
			"room", roomID, "user", id.UserID, "stale", prior, "conn", connID)
		if t.closeStale != nil {
			t.closeStale(prior)
		}
	}

	p := domain.Participant{
		ConnID:   connID,
		UserID:   id.UserID,
		Username: id.Username,
	}
	if _, err = t.registry.Join(roomID, p, maxMembers); err != nil {
		return ReplayState{}, superseded, err
	}

	members, lastSeq := t.registry.Snapshot(roomID)
	return ReplayState{Members: members, LastSequence: lastSeq}, superseded, nil
}
