package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

func newTestHub(t *testing.T, cfg Config) (*Hub, *httptest.Server) {
	t.Helper()
	hub := New(cfg, AllowAllAuthenticator, nil, nil, NewMetrics("syncengine_test_"+strings.ReplaceAll(t.Name(), "/", "_")))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg OutboundMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func inboundJSON(t *testing.T, msgType string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return mustJSON(t, InboundMessage{Type: msgType, Data: raw})
}

func TestHub_AuthThenJoinRoomThenBroadcast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthTimeout = time.Second
	cfg.HeartbeatInterval = time.Hour
	hub, srv := newTestHub(t, cfg)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, inboundJSON(t, MsgAuth, map[string]string{"token": "tok"})))

	authSuccess := readMessage(t, conn)
	assert.Equal(t, MsgAuthSuccess, authSuccess.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, inboundJSON(t, MsgJoinRoom, map[string]string{"room": "task:T1"})))

	subscribed := readMessage(t, conn)
	assert.Equal(t, MsgSubscribed, subscribed.Type)

	require.Eventually(t, func() bool { return hub.ActiveConnections() == 1 }, time.Second, 10*time.Millisecond)

	update := &domain.StatusUpdate{EntityID: "T1", EntityType: domain.EntityTask, Status: "completed", Source: domain.SystemTracker}
	hub.Broadcast("task:T1", update)

	broadcast := readMessage(t, conn)
	assert.Equal(t, MsgBroadcast, broadcast.Type)
	require.NotNil(t, broadcast.Data)
	data, ok := broadcast.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "T1", data["entityId"])
}

func TestHub_UnauthenticatedMessageRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthTimeout = time.Second
	cfg.HeartbeatInterval = time.Hour
	_, srv := newTestHub(t, cfg)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, inboundJSON(t, MsgJoinRoom, map[string]string{"room": "task:T1"})))

	resp := readMessage(t, conn)
	assert.Equal(t, MsgError, resp.Type)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "not authenticated", data["message"])
}

func TestHub_AuthTimeoutClosesConnection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthTimeout = 50 * time.Millisecond
	cfg.HeartbeatInterval = time.Hour
	_, srv := newTestHub(t, cfg)
	conn := dial(t, srv)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, 1008, closeErr.Code)
}

func TestHub_RejectsBeyondMaxConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	cfg.AuthTimeout = time.Second
	cfg.HeartbeatInterval = time.Hour
	_, srv := newTestHub(t, cfg)

	first := dial(t, srv)
	require.NoError(t, first.WriteMessage(websocket.TextMessage, inboundJSON(t, MsgAuth, map[string]string{"token": "a"})))
	readMessage(t, first)

	second := dial(t, srv)
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := second.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, 1013, closeErr.Code)
}

func TestHub_HeartbeatMissClosesWith1001(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthTimeout = time.Second
	cfg.HeartbeatInterval = 30 * time.Millisecond
	cfg.HeartbeatGrace = 20 * time.Millisecond
	_, srv := newTestHub(t, cfg)
	conn := dial(t, srv)

	// Swallow pings without replying, so the read deadline set for heartbeat
	// liveness fires on the hub side and it must close with 1001.
	conn.SetPingHandler(func(string) error { return nil })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok)
	assert.Equal(t, 1001, closeErr.Code)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
