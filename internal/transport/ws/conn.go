package ws

import (
	"sync"
	"sync/atomic"

	"github.com/collabcode/hub-service/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Per-connection lifecycle states.
type connState int32

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateInRoom
	stateClosed
)

// wsConn owns one transport connection. The write pump is the only
// goroutine writing data frames; everything else enqueues into out.
type wsConn struct {
	id       uuid.UUID
	sock     *websocket.Conn
	identity domain.Identity

	mu     sync.Mutex
	state  connState
	roomID string

	out       chan Outbound
	closed    chan struct{}
	closeOnce sync.Once

	// superseded: закрываем без user_left
	quiet atomic.Bool
}

func newConn(sock *websocket.Conn, identity domain.Identity, sendBuf int) *wsConn {
	if sendBuf <= 0 {
		sendBuf = 64
	}
	return &wsConn{
		id:       uuid.New(),
		sock:     sock,
		identity: identity,
		state:    stateConnecting,
		out:      make(chan Outbound, sendBuf),
		closed:   make(chan struct{}),
	}
}

// enqueue hands the message to the write pump without ever blocking the
// caller. A full buffer means the recipient is too slow; the message is
// dropped and the receiver will see a sequence gap.
func (c *wsConn) enqueue(msg Outbound) error {
	select {
	case <-c.closed:
		return domain.ErrConnectionGone
	default:
	}

	select {
	case c.out <- msg:
		return nil
	case <-c.closed:
		return domain.ErrConnectionGone
	default:
		return domain.ErrSendBufferFull
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		c.setState(stateClosed)
		close(c.closed)
	})
}

func (c *wsConn) setState(s connState) {
	c.mu.Lock()
	if c.state != stateClosed {
		c.state = s
	} else if s == stateClosed {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *wsConn) currentState() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *wsConn) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

// clearRoom returns the room the connection was in, if any, and leaves the
// connection roomless.
func (c *wsConn) clearRoom() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.roomID
	c.roomID = ""
	return id, id != ""
}

func (c *wsConn) room() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.roomID != ""
}
