package signal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/services"
	"codeshare/internal/infrastructure/collab"
	"codeshare/internal/infrastructure/pubsub"
	"codeshare/internal/infrastructure/repositories/memory"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) (*WebSocketServer, *httptest.Server) {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()

	snippets := memory.NewMemorySnippetRepository()
	snippets.Put(&domain.Snippet{ID: "42", AuthorID: "a", Title: "demo.go"})

	broker := pubsub.NewBroker(logger)
	router := collab.NewRouter(services.NewPresenceService(logger), snippets, broker, logger)
	srv := NewWebSocketServer(router, broker, nil, logger)

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) OutboundFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame OutboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWebSocketServer_RejectsAnonymous(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketServer_JoinDeliversOwnPresence(t *testing.T) {
	srv, ts := newTestServer(t)

	conn := dial(t, ts, "user_id=a&username=alice")

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "join", SessionID: "42"}))

	frame := readFrame(t, conn)
	assert.Equal(t, "/topic/snippet/42/presence", frame.Topic)

	payload, ok := frame.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "user_joined", payload["type"])
	assert.Equal(t, "alice", payload["username"])
	assert.Equal(t, "demo.go", payload["snippetTitle"])

	assert.Equal(t, 1, srv.ConnectionCount())
}

func TestWebSocketServer_BroadcastReachesOtherParticipant(t *testing.T) {
	_, ts := newTestServer(t)

	alice := dial(t, ts, "user_id=a&username=alice")
	bob := dial(t, ts, "user_id=b&username=bob")

	require.NoError(t, alice.WriteJSON(InboundMessage{Type: "join", SessionID: "42"}))
	readFrame(t, alice) // alice's own join

	require.NoError(t, bob.WriteJSON(InboundMessage{Type: "join", SessionID: "42"}))
	readFrame(t, bob) // bob's own join

	// Alice sees bob's join too.
	frame := readFrame(t, alice)
	payload := frame.Payload.(map[string]interface{})
	assert.Equal(t, "user_joined", payload["type"])
	assert.Equal(t, "bob", payload["username"])

	// A code change from alice reaches bob.
	require.NoError(t, alice.WriteJSON(InboundMessage{
		Type:      "code_change",
		SessionID: "42",
		Payload:   []byte(`{"userId":"a","username":"alice","code":"package main","language":"go"}`),
	}))

	frame = readFrame(t, bob)
	assert.Equal(t, "/topic/snippet/42/code", frame.Topic)
	code := frame.Payload.(map[string]interface{})
	assert.Equal(t, "package main", code["code"])
}

func TestWebSocketServer_UnknownTypeReturnsError(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dial(t, ts, "user_id=a")
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "bogus"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp map[string]interface{}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp["type"])
}

func TestWebSocketServer_ReconnectReplacesConnection(t *testing.T) {
	srv, ts := newTestServer(t)

	first := dial(t, ts, "user_id=a&username=alice")
	_ = first
	second := dial(t, ts, "user_id=a&username=alice")

	require.NoError(t, second.WriteJSON(InboundMessage{Type: "join", SessionID: "42"}))
	frame := readFrame(t, second)
	assert.Equal(t, "/topic/snippet/42/presence", frame.Topic)

	// Only the replacement connection is tracked.
	assert.Equal(t, 1, srv.ConnectionCount())

	// The first connection was closed by the server.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	var discard OutboundFrame
	err := first.ReadJSON(&discard)
	assert.Error(t, err)
}
