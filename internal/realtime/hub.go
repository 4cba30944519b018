// Package realtime implements the fan-out hub (C4): a WebSocket server that
// authenticates connections, manages room-based subscriptions, and
// broadcasts normalized status updates with per-connection rate limiting
// and heartbeat liveness checking.
package realtime

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

// Authenticator validates a bearer token presented in an auth message.
type Authenticator func(token string) bool

// AllowAllAuthenticator accepts any non-empty token; useful for local
// development and tests where the four upstream systems aren't wired to a
// real identity provider.
func AllowAllAuthenticator(token string) bool { return token != "" }

// StaticTokenAuthenticator builds an Authenticator that accepts exactly the
// given tokens, compared in constant time (grounded on the teacher's
// internal/api/middleware/auth.go API-key check, adapted from a header
// lookup to a fixed allow-list since the hub has no per-token user
// record). An empty token set rejects every connection.
func StaticTokenAuthenticator(tokens []string) Authenticator {
	allowed := make(map[string][]byte, len(tokens))
	for _, t := range tokens {
		allowed[t] = []byte(t)
	}
	return func(token string) bool {
		want, ok := allowed[token]
		if !ok {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(token), want) == 1
	}
}

// Config configures a Hub.
type Config struct {
	MaxConnections     int
	AuthTimeout        time.Duration
	HeartbeatInterval  time.Duration
	HeartbeatGrace     time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int
	WriteQueueSize     int
	ReadBufferSize     int
	WriteBufferSize    int
}

// DefaultConfig returns sane defaults for a Hub.
func DefaultConfig() Config {
	return Config{
		MaxConnections:     10000,
		AuthTimeout:        5 * time.Second,
		HeartbeatInterval:  30 * time.Second,
		HeartbeatGrace:     10 * time.Second,
		RateLimitPerSecond: 20,
		RateLimitBurst:     40,
		WriteQueueSize:     256,
		ReadBufferSize:     1024,
		WriteBufferSize:    1024,
	}
}

// StatusUpdateHandler is invoked when an authenticated connection submits a
// status_update message, letting the hub double as an ingestion surface for
// the orchestrator (C6). A nil handler means inbound status updates are
// acknowledged but otherwise dropped.
type StatusUpdateHandler func(update *domain.StatusUpdate) error

// Hub is the WebSocket fan-out server.
type Hub struct {
	cfg            Config
	logger         *slog.Logger
	metrics        *Metrics
	authenticate   Authenticator
	onStatusUpdate StatusUpdateHandler
	upgrader       websocket.Upgrader
	limiterFactory func() connLimiter

	mu          sync.RWMutex
	connections map[string]*Connection
	rooms       map[string]map[string]*Connection
}

// New builds a Hub. auth and onUpdate may be nil, in which case
// AllowAllAuthenticator and a no-op handler are used respectively. Each
// connection gets its own per-process token-bucket limiter
// (golang.org/x/time/rate); call UseDistributedRateLimit to share rate
// limit state across hub processes via Redis instead.
func New(cfg Config, auth Authenticator, onUpdate StatusUpdateHandler, logger *slog.Logger, m *Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if auth == nil {
		auth = AllowAllAuthenticator
	}
	h := &Hub{
		cfg:            cfg,
		logger:         logger,
		metrics:        m,
		authenticate:   auth,
		onStatusUpdate: onUpdate,
		connections:    make(map[string]*Connection),
		rooms:          make(map[string]map[string]*Connection),
	}
	h.limiterFactory = func() connLimiter {
		return rate.NewLimiter(rate.Limit(h.cfg.RateLimitPerSecond), h.cfg.RateLimitBurst)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return h
}

// UseDistributedRateLimit swaps every subsequently accepted connection's
// limiter for one backed by client, sharing the rate-limit window/count
// across every hub process behind the same Redis instance instead of
// enforcing it per-process. Existing connections are unaffected.
func (h *Hub) UseDistributedRateLimit(client *redis.Client) {
	h.limiterFactory = func() connLimiter {
		return newRedisRateLimiter(client, h.cfg.RateLimitPerSecond, h.cfg.RateLimitBurst)
	}
}

func (h *Hub) newConnLimiter() connLimiter {
	return h.limiterFactory()
}

// ServeHTTP upgrades the request to a WebSocket connection and begins
// serving it. It is the hub's single HTTP surface.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	full := len(h.connections) >= h.cfg.MaxConnections
	h.mu.RUnlock()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	if full {
		if h.metrics != nil {
			h.metrics.ConnectionsRejected.WithLabelValues("max_connections").Inc()
		}
		deadline := time.Now().Add(time.Second)
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(1013, "too many connections"), deadline)
		ws.Close()
		return
	}

	conn := newConnection(uuid.NewString(), ws, h)
	h.register(conn)
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	h.connections[c.id] = c
	active := len(h.connections)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionsTotal.Inc()
		h.metrics.ConnectionsActive.Set(float64(active))
	}

	c.setState(stateAwaitingAuth)
	c.authTimer = time.AfterFunc(h.cfg.AuthTimeout, func() {
		if !c.isAuthenticated() {
			h.logger.Debug("auth timeout, closing connection", "conn", c.id)
			c.close(1008, "auth timeout")
		}
	})

	go c.writePump()
	go h.readPump(c)
	go h.heartbeat(c)
}

// unregister removes c from the connection and room tables and closes the
// socket with code 1000 (normal closure). Use unregisterWithCode to close
// with a more specific code (heartbeat miss, shutdown, ...).
func (h *Hub) unregister(c *Connection) {
	h.unregisterWithCode(c, 1000, "unregistered")
}

// unregisterWithCode removes c from the connection and room tables and
// closes the socket with the given close code and reason.
func (h *Hub) unregisterWithCode(c *Connection, code int, reason string) {
	h.mu.Lock()
	delete(h.connections, c.id)
	for _, room := range c.roomList() {
		if members, ok := h.rooms[room]; ok {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	active := len(h.connections)
	roomCount := len(h.rooms)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionsActive.Set(float64(active))
		h.metrics.RoomsActive.Set(float64(roomCount))
	}
	c.close(code, reason)
}

func (h *Hub) readPump(c *Connection) {
	c.ws.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatInterval + h.cfg.HeartbeatGrace))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(h.cfg.HeartbeatInterval + h.cfg.HeartbeatGrace))
		return nil
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				h.unregisterWithCode(c, 1001, "heartbeat missed")
			} else {
				h.unregister(c)
			}
			return
		}
		if !c.limiter.Allow() {
			if h.metrics != nil {
				h.metrics.MessagesDroppedTotal.WithLabelValues("rate_limited").Inc()
			}
			continue
		}
		h.handleMessage(c, payload)
	}
}

func (h *Hub) heartbeat(c *Connection) {
	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(h.cfg.HeartbeatGrace))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("ping failed, closing connection", "conn", c.id, "error", err)
				c.close(1001, "heartbeat failed")
				return
			}
		}
	}
}

func (h *Hub) handleMessage(c *Connection, payload []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.sendJSON(newErrorMessage("malformed message"))
		return
	}

	if msg.Type == MsgPing {
		c.sendJSON(newOutbound(MsgPong, pongData{Timestamp: time.Now().UnixMilli()}))
		return
	}

	if msg.Type == MsgAuth {
		h.handleAuth(c, msg)
		return
	}

	if !c.isAuthenticated() {
		c.sendJSON(newErrorMessage("not authenticated"))
		return
	}

	switch msg.Type {
	case MsgSubscribe, MsgJoinRoom:
		h.handleJoinRoom(c, msg)
	case MsgUnsubscribe, MsgLeaveRoom:
		h.handleLeaveRoom(c, msg)
	case MsgStatusUpdate:
		h.handleStatusUpdate(c, msg)
	default:
		c.sendJSON(newErrorMessage("unknown message type"))
	}
}

func (h *Hub) handleAuth(c *Connection, msg InboundMessage) {
	token, err := msg.token()
	if err != nil || !h.authenticate(token) {
		c.sendJSON(newErrorMessage("authentication failed"))
		c.close(1008, "authentication failed")
		return
	}
	c.setState(stateAuthenticated)
	if c.authTimer != nil {
		c.authTimer.Stop()
	}
	c.sendJSON(newOutbound(MsgAuthSuccess, authSuccessData{ConnectionID: c.id}))
}

func (h *Hub) handleJoinRoom(c *Connection, msg InboundMessage) {
	room, err := msg.room()
	if err != nil || room == "" {
		c.sendJSON(newErrorMessage("missing room"))
		return
	}
	h.joinRoom(c, room)
	c.sendJSON(newOutbound(MsgSubscribed, roomAckData{Room: room}))
}

func (h *Hub) handleLeaveRoom(c *Connection, msg InboundMessage) {
	room, err := msg.room()
	if err != nil || room == "" {
		c.sendJSON(newErrorMessage("missing room"))
		return
	}
	h.leaveRoom(c, room)
	c.sendJSON(newOutbound(MsgUnsubscribed, roomAckData{Room: room}))
}

func (h *Hub) handleStatusUpdate(c *Connection, msg InboundMessage) {
	update, err := msg.statusUpdate()
	if err != nil {
		c.sendJSON(newErrorMessage("missing update payload"))
		return
	}
	if h.onStatusUpdate != nil {
		if err := h.onStatusUpdate(update); err != nil {
			c.sendJSON(newErrorMessage(err.Error()))
			return
		}
	}
	c.sendJSON(newOutbound(MsgDirect, map[string]string{"status": "accepted"}))
}

// joinRoom adds c to room, creating the room's index entry if this is its
// first member.
func (h *Hub) joinRoom(c *Connection, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Connection)
		h.rooms[room] = members
	}
	members[c.id] = c
	roomCount := len(h.rooms)
	h.mu.Unlock()

	c.joinRoom(room)
	if h.metrics != nil {
		h.metrics.RoomsActive.Set(float64(roomCount))
	}
}

// leaveRoom removes c from room, destroying the room's index entry once its
// last member leaves.
func (h *Hub) leaveRoom(c *Connection, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	c.leaveRoom(room)
	if h.metrics != nil {
		h.metrics.RoomsActive.Set(float64(roomCount))
	}
}

// Broadcast sends update to every connection subscribed to room.
func (h *Hub) Broadcast(room string, update *domain.StatusUpdate) {
	msg := newOutbound(MsgBroadcast, update)
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Connection, 0, len(members))
	for _, c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.enqueue(payload) {
			if h.metrics != nil {
				h.metrics.MessagesSentTotal.WithLabelValues(msg.Type).Inc()
			}
		} else if h.metrics != nil {
			h.metrics.MessagesDroppedTotal.WithLabelValues("queue_full").Inc()
		}
	}
}

// ActiveConnections returns the current number of registered connections.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Shutdown closes every connection with a going-away code. It does not wait
// for client acknowledgement.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.close(1001, "server shutting down")
	}
}
