package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisiscore-hq/crisiscore/pkg/broadcast"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

func dialTestSocket(t *testing.T, s *Server) (*websocket.Conn, context.Context) {
	t.Helper()

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn, ctx
}

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) broadcast.Envelope {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var env broadcast.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestWebSocketInitialState(t *testing.T) {
	s, coord := newTestServer(t)
	coord.Graph().AddIncident(&models.IncidentNode{
		ID:      "inc_ws",
		Urgency: models.UrgencyHigh,
		Status:  models.IncidentActive,
	})

	conn, ctx := dialTestSocket(t, s)

	env := readEnvelope(t, ctx, conn)
	assert.Equal(t, "initial_state", env.Type)
	payload, ok := env.Payload.(map[string]any)
	require.True(t, ok)
	incidents, ok := payload["incidents"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, incidents, "inc_ws")

	env = readEnvelope(t, ctx, conn)
	assert.Equal(t, "sim_status", env.Type)
}

func TestWebSocketRequestRefresh(t *testing.T) {
	s, _ := newTestServer(t)
	conn, ctx := dialTestSocket(t, s)

	// Drain the two connect messages.
	readEnvelope(t, ctx, conn)
	readEnvelope(t, ctx, conn)

	require.NoError(t, conn.Write(ctx, websocket.MessageText,
		[]byte(`{"type":"request_refresh"}`)))

	env := readEnvelope(t, ctx, conn)
	assert.Equal(t, "graph_update", env.Type)
}

func TestWebSocketReceivesHubBroadcasts(t *testing.T) {
	s, _ := newTestServer(t)
	conn, ctx := dialTestSocket(t, s)

	readEnvelope(t, ctx, conn)
	readEnvelope(t, ctx, conn)

	s.hub.Broadcast("timeline_event", map[string]any{"events": []any{}})

	env := readEnvelope(t, ctx, conn)
	assert.Equal(t, "timeline_event", env.Type)
}

func TestWebSocketHumanDecision(t *testing.T) {
	s, coord := newTestServer(t)
	coord.Graph().AddContradiction(&models.ContradictionAlert{
		ID:         "alert_ws",
		EntityID:   "bridge",
		EntityName: "Main Street Bridge",
		Verdict:    models.VerdictContradiction,
		Urgency:    models.UrgencyHigh,
	})

	conn, ctx := dialTestSocket(t, s)
	readEnvelope(t, ctx, conn)
	readEnvelope(t, ctx, conn)

	msg := `{"type":"human_decision","payload":{"item_type":"contradiction","item_id":"alert_ws","decision":"trust_satellite"}}`
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(msg)))

	require.Eventually(t, func() bool {
		alert, ok := coord.Graph().Snapshot().Contradictions["alert_ws"]
		return ok && alert.Resolved
	}, 3*time.Second, 20*time.Millisecond)

	// A malformed message must not kill the connection.
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not-json")))
	require.NoError(t, conn.Write(ctx, websocket.MessageText,
		[]byte(`{"type":"request_refresh"}`)))

	require.Eventually(t, func() bool {
		env := readEnvelope(t, ctx, conn)
		return env.Type == "graph_update"
	}, 3*time.Second, time.Millisecond)
}
