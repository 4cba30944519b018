package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

func TestInboundMessage_StatusUpdateRoundTrip(t *testing.T) {
	update := domain.StatusUpdate{
		EntityID:   "T1",
		EntityType: domain.EntityTask,
		Status:     "completed",
		Source:     domain.SystemTracker,
	}
	data, err := json.Marshal(update)
	require.NoError(t, err)
	msg := InboundMessage{Type: MsgStatusUpdate, Data: data}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded InboundMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, msg.Type, decoded.Type)

	decodedUpdate, err := decoded.statusUpdate()
	require.NoError(t, err)
	assert.Equal(t, update.EntityID, decodedUpdate.EntityID)
}

func TestInboundMessage_TokenAndRoomHelpers(t *testing.T) {
	auth := InboundMessage{Type: MsgAuth, Data: json.RawMessage(`{"token":"tok"}`)}
	token, err := auth.token()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	join := InboundMessage{Type: MsgJoinRoom, Data: json.RawMessage(`{"room":"task:T1"}`)}
	room, err := join.room()
	require.NoError(t, err)
	assert.Equal(t, "task:T1", room)
}

func TestOutboundMessage_EnvelopeShape(t *testing.T) {
	msg := newOutbound(MsgAuthSuccess, authSuccessData{ConnectionID: "abc"})
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, MsgAuthSuccess, decoded["type"])
	assert.NotEmpty(t, decoded["timestamp"])
	data, ok := decoded["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc", data["connectionId"])
}

func TestAllowAllAuthenticator(t *testing.T) {
	assert.True(t, AllowAllAuthenticator("some-token"))
	assert.False(t, AllowAllAuthenticator(""))
}
