package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keti-tsn/trafficd/internal/config"
	"github.com/keti-tsn/trafficd/internal/domain"
	"github.com/keti-tsn/trafficd/internal/hub"
	"github.com/keti-tsn/trafficd/internal/service"
	"github.com/keti-tsn/trafficd/internal/sudo"
)

func newTestStack(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()

	cfg := &config.Config{
		RunTimeout:     30 * time.Second,
		SudoTimeout:    time.Minute,
		PingInterval:   10 * time.Second,
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    30 * time.Second,
		MaxMessageSize: 65536,
	}

	h := hub.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	session := sudo.NewSession(cfg.SudoTimeout, h)
	svc := service.New(cfg, h, session)

	e := echo.New()
	e.GET("/ws", NewServer(cfg, h, svc).HandleWebSocket)

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return ts, h
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestWebSocketConnectAndReceive(t *testing.T) {
	ts, h := newTestStack(t)
	conn := dial(t, ts)

	ack := readJSON(t, conn)
	assert.Equal(t, "connected", ack["type"])

	waitFor(t, time.Second, func() bool { return h.Count() == 1 })

	h.Publish(domain.NewEvent(domain.ToolThroughput, domain.EventStarted, map[string]any{"host": "10.0.0.2"}))

	ev := readJSON(t, conn)
	assert.Equal(t, "throughput_started", ev["type"])
	data := ev["data"].(map[string]any)
	assert.Equal(t, "10.0.0.2", data["host"])
}

func TestWebSocketBroadcastToAll(t *testing.T) {
	ts, h := newTestStack(t)

	conns := []*websocket.Conn{dial(t, ts), dial(t, ts), dial(t, ts)}
	for _, c := range conns {
		ack := readJSON(t, c)
		require.Equal(t, "connected", ack["type"])
	}
	waitFor(t, time.Second, func() bool { return h.Count() == 3 })

	h.Publish(domain.NewEvent(domain.ToolVideo, domain.EventStopped, nil))
	for _, c := range conns {
		ev := readJSON(t, c)
		assert.Equal(t, "video_stopped", ev["type"])
	}
}

func TestWebSocketGetStats(t *testing.T) {
	ts, _ := newTestStack(t)
	conn := dial(t, ts)
	readJSON(t, conn) // ack

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "get_stats"}))
	reply := readJSON(t, conn)
	require.Equal(t, "stats", reply["type"])

	data, ok := reply["data"].(map[string]any)
	require.True(t, ok)
	for _, tool := range []string{"throughput", "latency", "packetgen", "video"} {
		assert.Contains(t, data, tool)
	}
}

func TestWebSocketBadInbound(t *testing.T) {
	ts, _ := newTestStack(t)
	conn := dial(t, ts)
	readJSON(t, conn) // ack

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	reply := readJSON(t, conn)
	assert.Equal(t, "error", reply["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe"}))
	reply = readJSON(t, conn)
	assert.Equal(t, "error", reply["type"])
	assert.Contains(t, reply["message"], "subscribe")
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	ts, h := newTestStack(t)
	conn := dial(t, ts)
	readJSON(t, conn) // ack
	waitFor(t, time.Second, func() bool { return h.Count() == 1 })

	conn.Close()
	waitFor(t, 2*time.Second, func() bool { return h.Count() == 0 })

	// Teardown leaves the hub healthy: publishing with the connection gone
	// must not block the dispatcher.
	done := make(chan struct{})
	go func() {
		h.Publish(domain.NewEvent(domain.ToolThroughput, domain.EventStarted, nil))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after disconnect")
	}
}
