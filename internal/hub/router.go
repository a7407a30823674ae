package hub

import (
	"errors"
	"log/slog"

	"github.com/collabcode/hub-service/internal/domain"

	"github.com/google/uuid"
)

// Peers is the transport-side connection table. Send must not block on a
// slow recipient; it either enqueues the event or fails immediately.
type Peers interface {
	Send(connID uuid.UUID, ev domain.Event) error
}

// DeadPeerFunc is invoked (on the router's goroutine) when a delivery failed
// because the recipient's transport is gone; it should trigger that
// connection's normal disconnect path.
type DeadPeerFunc func(connID uuid.UUID)

// Router stamps per-room sequence numbers and fans events out to room
// members. It relays, it never merges: payloads pass through untouched.
type Router struct {
	registry *Registry
	peers    Peers
	onDead   DeadPeerFunc
	log      *slog.Logger
}

func NewRouter(registry *Registry, peers Peers, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		registry: registry,
		peers:    peers,
		log:      log.With(slog.String("component", "router")),
	}
}

// SetDeadPeerFunc wires the transport's disconnect path. Optional.
func (r *Router) SetDeadPeerFunc(fn DeadPeerFunc) { r.onDead = fn }

// echo-suppressed kinds: the originator already has the state locally.
func suppressEcho(k domain.EventKind) bool {
	switch k {
	case domain.KindCodeChange, domain.KindCursorMove, domain.KindTyping:
		return true
	}
	return false
}

// Route assigns the event's sequence number and delivers it to the room's
// members. All recipients of one logical event see the same sequence number.
// A failed delivery to one recipient is logged and never stops the others.
// Returns the number of successful deliveries.
func (r *Router) Route(ev domain.Event) int {
	members := r.registry.MembersOf(ev.RoomID)
	if len(members) == 0 {
		return 0
	}

	seq, err := r.registry.NextSequence(ev.RoomID)
	if err != nil {
		// комната исчезла между snapshot и stamp — доставлять некому
		return 0
	}
	ev.Seq = seq

	delivered := 0
	for _, m := range members {
		if suppressEcho(ev.Kind) && m.ConnID == ev.Origin {
			continue
		}
		if err := r.peers.Send(m.ConnID, ev); err != nil {
			r.log.Warn("delivery failed",
				"room", ev.RoomID, "kind", ev.Kind, "seq", ev.Seq,
				"to", m.ConnID, "err", err)
			if r.onDead != nil && errors.Is(err, domain.ErrConnectionGone) {
				r.onDead(m.ConnID)
			}
			continue
		}
		delivered++
	}
	return delivered
}
