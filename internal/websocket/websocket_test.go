package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpulse/internal/config"
	"stockpulse/internal/shared/testutil"
)

func newTestServer(t *testing.T, origins []string) (*Hub, *httptest.Server) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	hub := NewHub(logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := config.WebSocketConfig{ReadBufferSize: 1024, WriteBufferSize: 1024, PingPeriod: time.Second, PongWait: 2 * time.Second}
	srv := httptest.NewServer(NewHandler(hub, cfg, origins, logger))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub, srv := newTestServer(t, nil)

	a := dial(t, srv, nil)
	b := dial(t, srv, nil)
	assert.Equal(t, TypeConnection, readMessage(t, a).Type)
	assert.Equal(t, TypeConnection, readMessage(t, b).Type)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("ticker_complete", map[string]interface{}{"ticker": "AAPL", "data_points": 21})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, "ticker_complete", msg.Type)
		data, ok := msg.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "AAPL", data["ticker"])
		assert.False(t, msg.Timestamp.IsZero())
	}

	stats := hub.Stats()
	assert.Equal(t, int64(2), stats.TotalConnections)
	assert.GreaterOrEqual(t, stats.MessagesSent, int64(2))
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, srv := newTestServer(t, nil)

	conn := dial(t, srv, nil)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger, nil)

	// no Run loop: the queue fills and further messages are dropped
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Broadcast("analysis_stage", map[string]int{"i": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked")
	}
	assert.Equal(t, int64(10), hub.Stats().MessagesDropped)

	hub.Stop()
	hub.Stop()
	hub.Broadcast("analysis_stage", nil)
	assert.False(t, hub.Register(&Client{}))
}

func TestHandler_CheckOrigin(t *testing.T) {
	_, srv := newTestServer(t, []string{"http://allowed.example"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{"no origin", "", false},
		{"allowed origin", "http://allowed.example", false},
		{"same host", srv.URL, false},
		{"foreign origin", "http://evil.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.wantErr {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			conn.Close()
		})
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, srv := newTestServer(t, nil)

	conn := dial(t, srv, nil)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
