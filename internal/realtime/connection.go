package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// connState is the connection lifecycle state per spec.md §4.4: Accepted ->
// Awaiting auth -> Authenticated -> Closing.
type connState int32

const (
	stateAccepted connState = iota
	stateAwaitingAuth
	stateAuthenticated
	stateClosing
)

// connLimiter is the rate-limiting contract a Connection needs: *rate.Limiter
// satisfies it directly for the single-process default; redisRateLimiter
// satisfies it for the distributed case.
type connLimiter interface {
	Allow() bool
}

// Connection wraps one accepted WebSocket with its room memberships, a
// serializing write queue, and a per-connection rate limiter.
type Connection struct {
	id     string
	ws     *websocket.Conn
	hub    *Hub
	logger *slog.Logger

	state   atomic.Int32
	send    chan []byte
	limiter connLimiter

	mu    sync.Mutex
	rooms map[string]bool

	authTimer *time.Timer
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(id string, ws *websocket.Conn, hub *Hub) *Connection {
	c := &Connection{
		id:      id,
		ws:      ws,
		hub:     hub,
		logger:  hub.logger,
		send:    make(chan []byte, hub.cfg.WriteQueueSize),
		limiter: hub.newConnLimiter(),
		rooms:   make(map[string]bool),
		done:    make(chan struct{}),
	}
	c.state.Store(int32(stateAccepted))
	return c
}

func (c *Connection) setState(s connState) {
	c.state.Store(int32(s))
}

func (c *Connection) currentState() connState {
	return connState(c.state.Load())
}

func (c *Connection) isAuthenticated() bool {
	return c.currentState() == stateAuthenticated
}

// joinRoom records room membership on the connection's own side; the hub's
// room index is updated by the caller under the hub's lock.
func (c *Connection) joinRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func (c *Connection) leaveRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

func (c *Connection) roomList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// enqueue pushes a pre-encoded frame onto the connection's write queue. It
// never blocks the caller: a full queue drops the message rather than
// backing up the hub's broadcast path.
func (c *Connection) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// writePump is the sole goroutine allowed to call ws.WriteMessage,
// serializing every outbound frame for this connection.
func (c *Connection) writePump() {
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("write failed, closing connection", "conn", c.id, "error", err)
				c.hub.unregister(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// sendJSON encodes msg and enqueues it for delivery.
func (c *Connection) sendJSON(msg OutboundMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if !c.enqueue(payload) {
		if c.hub.metrics != nil {
			c.hub.metrics.MessagesDroppedTotal.WithLabelValues("queue_full").Inc()
		}
		return
	}
	if c.hub.metrics != nil {
		c.hub.metrics.MessagesSentTotal.WithLabelValues(msg.Type).Inc()
	}
}

// close stops the write pump and closes the underlying socket exactly once.
func (c *Connection) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.setState(stateClosing)
		if c.authTimer != nil {
			c.authTimer.Stop()
		}
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), deadline)
		c.ws.Close()
	})
}
