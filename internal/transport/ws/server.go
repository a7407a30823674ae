package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/collabcode/hub-service/internal/domain"
	"github.com/collabcode/hub-service/internal/hub"
	"github.com/collabcode/hub-service/internal/security"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// TokenVerifier gates the handshake. Implemented by security.Verifier.
type TokenVerifier interface {
	Verify(raw string, now time.Time) (domain.Identity, error)
}

// RoomDirectory answers capacity questions for rooms that have directory
// metadata. Rooms without a row join unlimited (created lazily by the
// registry); a nil directory disables capacity checks entirely.
type RoomDirectory interface {
	MaxEditors(ctx context.Context, roomID string) (int64, error)
}

type Options struct {
	IdleTimeout     time.Duration // disconnect after this long without any inbound frame
	PingInterval    time.Duration
	SendBuffer      int
	MaxMessageBytes int64
}

func (o *Options) defaults() {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 15 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
}

// Server owns the lifecycle of every live connection: handshake, room
// membership changes, inbound validation and the disconnect paths. Relay
// itself is delegated to the router.
type Server struct {
	upgrader  websocket.Upgrader
	verifier  TokenVerifier
	registry  *hub.Registry
	router    *hub.Router
	tracker   *hub.Tracker
	directory RoomDirectory
	opts      Options
	log       *slog.Logger

	mu    sync.RWMutex
	conns map[uuid.UUID]*wsConn
}

func NewServer(verifier TokenVerifier, registry *hub.Registry, directory RoomDirectory, opts Options, log *slog.Logger) *Server {
	opts.defaults()
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		verifier:  verifier,
		registry:  registry,
		directory: directory,
		opts:      opts,
		log:       log.With(slog.String("component", "ws")),
		conns:     make(map[uuid.UUID]*wsConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = hub.NewRouter(registry, s, log)
	s.router.SetDeadPeerFunc(s.killConn)
	s.tracker = hub.NewTracker(registry, log)
	s.tracker.SetStaleCloseFunc(s.closeStale)
	return s
}

// Router exposes the broadcast router, e.g. for relaying server-side events.
func (s *Server) Router() *hub.Router { return s.router }

// WS endpoint: GET /ws/rooms/{id}?token=...
// The token is verified after the upgrade so the client receives a
// machine-readable close reason instead of a bare HTTP error.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "err", err)
		return
	}

	identity, err := s.verifier.Verify(r.URL.Query().Get("token"), time.Now())
	if err != nil {
		code, reason := security.CloseReason(err)
		s.log.Info("handshake rejected", "reason", reason, "remote", sock.RemoteAddr())
		_ = sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = sock.Close()
		return
	}

	c := newConn(sock, identity, s.opts.SendBuffer)
	c.setState(stateAuthenticated)
	s.addConn(c)
	s.log.Info("connection accepted",
		"conn", c.id, "user", identity.UserID, "username", identity.Username)

	go s.writePump(c)

	if roomID != "" {
		if err := s.joinRoom(c, roomID); err != nil {
			s.log.Warn("join at handshake failed", "conn", c.id, "room", roomID, "err", err)
		}
	}

	reason := s.readPump(c)
	s.disconnect(c, reason)
}

// Send implements hub.Peers; it never blocks on a slow recipient.
func (s *Server) Send(connID uuid.UUID, ev domain.Event) error {
	c := s.conn(connID)
	if c == nil {
		return domain.ErrConnectionGone
	}
	return c.enqueue(outboundFromEvent(ev))
}

func (s *Server) readPump(c *wsConn) domain.LeaveReason {
	c.sock.SetReadLimit(s.opts.MaxMessageBytes)
	_ = c.sock.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
	c.sock.SetPongHandler(func(string) error {
		// heartbeat тоже считается активностью
		_ = c.sock.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		s.markSeen(c)
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			return classifyReadError(err)
		}
		_ = c.sock.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		s.markSeen(c)
		s.handleMessage(c, data)
	}
}

func (s *Server) writePump(c *wsConn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.out:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(msg); err != nil {
				c.close()
				_ = c.sock.Close()
				return
			}
		case <-ticker.C:
			_ = c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		case <-c.closed:
			return
		}
	}
}

func (s *Server) handleMessage(c *wsConn, data []byte) {
	ev, err := parseInbound(data)
	if err != nil {
		// сообщение отбрасывается, соединение живёт; peers ничего не видят
		s.log.Debug("invalid inbound event", "conn", c.id, "err", err)
		s.warn(c, warnInvalidEvent, err.Error())
		return
	}

	switch ev.Kind {
	case domain.KindRoomJoined:
		if err := s.joinRoom(c, ev.RoomID); err != nil {
			s.log.Warn("join failed", "conn", c.id, "room", ev.RoomID, "err", err)
		}
		return
	case domain.KindRoomLeft:
		s.leaveRoom(c, domain.LeaveVoluntary, true)
		return
	}

	roomID, ok := c.room()
	if !ok || c.currentState() != stateInRoom {
		s.warn(c, warnNotInRoom, "join a room before sending events")
		return
	}
	ev.RoomID = roomID
	ev.Origin = c.id

	switch ev.Kind {
	case domain.KindCursorMove:
		p := ev.Payload.(domain.CursorMovePayload)
		err = s.registry.UpdatePresence(roomID, c.id, domain.PresenceUpdate{Cursor: &p.Cursor})
	case domain.KindTyping:
		p := ev.Payload.(domain.TypingPayload)
		err = s.registry.UpdatePresence(roomID, c.id, domain.PresenceUpdate{IsTyping: &p.IsTyping})
	}
	if err != nil {
		// race with a concurrent leave; update discarded
		s.log.Warn("presence update discarded", "conn", c.id, "room", roomID, "err", err)
		return
	}

	s.router.Route(ev)
}

// joinRoom handles both join-at-handshake and room switches. Switching
// leaves the old room first, with a voluntary user_left to its members.
func (s *Server) joinRoom(c *wsConn, roomID string) error {
	if c.currentState() == stateClosed {
		return domain.ErrConnectionGone
	}
	if cur, ok := c.room(); ok {
		if cur == roomID {
			// идемпотентный повторный join — клиенту достаточно свежего снапшота
			return s.sendSnapshot(c, roomID)
		}
		s.leaveRoom(c, domain.LeaveVoluntary, true)
	}

	max := s.maxEditors(roomID)
	st, superseded, err := s.tracker.Reconnect(c.identity, roomID, c.id, max)
	if err != nil {
		if errors.Is(err, domain.ErrRoomFull) {
			s.warn(c, warnRoomFull, "room is at capacity")
		}
		return err
	}

	c.setRoom(roomID)
	c.setState(stateInRoom)

	// снапшот — новому участнику, user_joined — всем (включая его самого)
	_ = c.enqueue(Outbound{
		Type:     string(domain.KindRoomJoined),
		RoomID:   roomID,
		Origin:   c.id.String(),
		Sequence: st.LastSequence,
		Payload: domain.RoomJoinedPayload{
			Members:      st.Members,
			LastSequence: st.LastSequence,
		},
	})

	if !superseded {
		s.router.Route(domain.Event{
			Kind:   domain.KindUserJoined,
			RoomID: roomID,
			Origin: c.id,
			Payload: domain.UserJoinedPayload{
				UserID:   c.identity.UserID,
				Username: c.identity.Username,
			},
		})
	}
	return nil
}

func (s *Server) sendSnapshot(c *wsConn, roomID string) error {
	members, lastSeq := s.registry.Snapshot(roomID)
	return c.enqueue(Outbound{
		Type:     string(domain.KindRoomJoined),
		RoomID:   roomID,
		Origin:   c.id.String(),
		Sequence: lastSeq,
		Payload:  domain.RoomJoinedPayload{Members: members, LastSequence: lastSeq},
	})
}

func (s *Server) leaveRoom(c *wsConn, reason domain.LeaveReason, announce bool) {
	roomID, ok := c.clearRoom()
	if !ok {
		return
	}
	removed, becameEmpty := s.registry.Leave(roomID, c.id)
	c.setState(stateAuthenticated)
	// removed=false: кто-то уже забрал членство (reconnect supersede) —
	// user_left от нас был бы ложным
	if !removed || becameEmpty || !announce {
		return
	}
	s.router.Route(domain.Event{
		Kind:   domain.KindUserLeft,
		RoomID: roomID,
		Origin: c.id,
		Payload: domain.UserLeftPayload{
			UserID:   c.identity.UserID,
			Username: c.identity.Username,
			Reason:   reason,
		},
	})
}

func (s *Server) disconnect(c *wsConn, reason domain.LeaveReason) {
	s.removeConn(c.id)
	s.leaveRoom(c, reason, !c.quiet.Load())
	c.close()
	_ = c.sock.Close()
	s.log.Info("connection closed", "conn", c.id, "user", c.identity.UserID, "reason", reason)
}

// closeStale shuts a superseded connection down without a user_left; the
// reconnection tracker already removed it from the registry.
func (s *Server) closeStale(connID uuid.UUID) {
	c := s.conn(connID)
	if c == nil {
		return
	}
	c.quiet.Store(true)
	_ = c.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "superseded"),
		time.Now().Add(writeWait))
	c.close()
	_ = c.sock.Close()
}

// killConn is the router's dead-peer callback: force the transport shut and
// let the connection's own read pump run the regular disconnect path.
func (s *Server) killConn(connID uuid.UUID) {
	c := s.conn(connID)
	if c == nil {
		return
	}
	c.close()
	_ = c.sock.Close()
}

// Shutdown closes every live connection with a going-away frame. The
// context bounds how long the close frames may take.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for _, c := range conns {
		if ctx.Err() != nil {
			// время вышло — просто рвём оставшиеся сокеты
			c.close()
			_ = c.sock.Close()
			continue
		}
		_ = c.sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			deadline)
		c.close()
		_ = c.sock.Close()
	}
}

func (s *Server) maxEditors(roomID string) int64 {
	if s.directory == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	max, err := s.directory.MaxEditors(ctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			s.log.Warn("directory lookup failed", "room", roomID, "err", err)
		}
		return 0
	}
	return max
}

func (s *Server) addConn(c *wsConn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
}

func (s *Server) removeConn(id uuid.UUID) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

func (s *Server) conn(id uuid.UUID) *wsConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[id]
}

// markSeen feeds inbound activity into the registry's last_seen bookkeeping.
func (s *Server) markSeen(c *wsConn) {
	if roomID, ok := c.room(); ok {
		s.registry.Touch(roomID, c.id)
	}
}

func (s *Server) warn(c *wsConn, code, msg string) {
	_ = c.enqueue(Outbound{
		Type:    TypeWarning,
		Payload: WarningPayload{Code: code, Message: msg},
	})
}

func classifyReadError(err error) domain.LeaveReason {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.LeaveTimeout
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return domain.LeaveVoluntary
	}
	return domain.LeaveTransportError
}
