package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jircord/logger"
	"jircord/service/storage"
	"jircord/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testJWT = security.DefaultOptions([]byte("test-secret"))

func startServer(t *testing.T) string {
	t.Helper()
	logger.Set(zaptest.NewLogger(t))
	gin.SetMode(gin.TestMode)

	seq := storage.NewSequencer(4, 64)
	r := NewRouter(Options{
		Log:       storage.NewMemoryLog(0),
		Sequencer: seq,
		Metrics:   NewMetrics(prometheus.NewRegistry()),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()

	srv := NewServer(ServerOptions{
		Router:      r,
		Verifier:    NewJWTVerifier(testJWT),
		AuthTimeout: time.Second,
	})
	engine := gin.New()
	engine.GET("/ws", srv.HandleWS)
	hs := httptest.NewServer(engine)

	t.Cleanup(func() {
		cancel()
		<-done
		seq.Close()
		hs.Close()
	})
	return "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, _, err := security.Generate(testJWT, user, time.Now())
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, url, user string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url+"?token="+token(t, user), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// readUntil skips frames until one carrying event arrives.
func readUntil(t *testing.T, c *websocket.Conn, event string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, p, err := c.ReadMessage()
		require.NoError(t, err)
		var f wireFrame
		require.NoError(t, json.Unmarshal(p, &f))
		if f.Event == event && (match == nil || match(f.Data)) {
			return f.Data
		}
	}
}

func send(t *testing.T, c *websocket.Conn, event string, data any) {
	t.Helper()
	b, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, b))
}

func hasUsers(want ...string) func(json.RawMessage) bool {
	return func(raw json.RawMessage) bool {
		var got []string
		if json.Unmarshal(raw, &got) != nil || len(got) != len(want) {
			return false
		}
		for i := range want {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}
}

func TestHandshakeRejected(t *testing.T) {
	url := startServer(t)

	for _, u := range []string{url, url + "?token=garbage"} {
		c, _, err := websocket.DefaultDialer.Dial(u, nil)
		require.NoError(t, err)
		_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, _, err = c.ReadMessage()
		var ce *websocket.CloseError
		require.ErrorAs(t, err, &ce)
		require.Equal(t, CloseUnauthorized, ce.Code)
		require.Equal(t, "unauthorized", ce.Text)
		_ = c.Close()
	}
}

func TestBearerHeaderHandshake(t *testing.T) {
	url := startServer(t)
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token(t, "alice"))
	c, _, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	defer c.Close()
	readUntil(t, c, EventUsersUpdate, hasUsers("alice"))
}

func TestEndToEnd(t *testing.T) {
	url := startServer(t)

	alice := dial(t, url, "alice")
	readUntil(t, alice, EventUsersUpdate, hasUsers("alice"))
	bob := dial(t, url, "bob")
	readUntil(t, bob, EventUsersUpdate, hasUsers("alice", "bob"))
	readUntil(t, alice, EventUsersUpdate, hasUsers("alice", "bob"))

	send(t, alice, EventChatMessage, map[string]any{"text": "hi"})
	for _, c := range []*websocket.Conn{alice, bob} {
		var m MessagePayload
		require.NoError(t, json.Unmarshal(readUntil(t, c, EventChatMessage, nil), &m))
		require.Equal(t, "alice", m.From)
		require.Equal(t, "hi", m.Text)
		require.Empty(t, m.To)
	}

	// malformed frames are dropped without closing the connection
	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("{oops")))

	send(t, bob, EventChatMessage, map[string]any{"to": "alice", "text": "hey"})
	var dm MessagePayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, EventChatMessage, nil), &dm))
	require.Equal(t, MessagePayload{From: "bob", To: "alice", Text: "hey", CreatedAt: dm.CreatedAt}, dm)
	_, err := ParseTime(dm.CreatedAt)
	require.NoError(t, err)

	send(t, alice, EventMessagesGet, "bob")
	var list []MessagePayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, EventMessagesList, nil), &list))
	require.Len(t, list, 1)
	require.Equal(t, "hey", list[0].Text)

	send(t, alice, EventUsersAll, nil)
	readUntil(t, alice, EventUsersAll, hasUsers("alice", "bob"))

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	readUntil(t, alice, EventUsersUpdate, hasUsers("alice"))
}
