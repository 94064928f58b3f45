package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func register(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	require.Eventually(t, func() bool {
		got, ok := hub.ClientByAddress(c.Address)
		return ok && got == c
	}, time.Second, time.Millisecond)
}

func TestHubBroadcastToPlayers(t *testing.T) {
	hub := startHub(t)

	c1 := &Client{Address: "0xA", Send: make(chan OutgoingMessage, 1), Hub: hub}
	c2 := &Client{Address: "0xB", Send: make(chan OutgoingMessage, 1), Hub: hub}
	register(t, hub, c1)
	register(t, hub, c2)

	msg := OutgoingMessage{
		Event: "round_over",
		Data:  map[string]interface{}{"matchId": "m1"},
	}
	hub.BroadcastToPlayers([]string{"0xA", "0xB", "0xGone"}, msg)

	assert.Equal(t, "round_over", (<-c1.Send).Event)
	assert.Equal(t, "round_over", (<-c2.Send).Event)
}

func TestHubSendToPlayer(t *testing.T) {
	hub := startHub(t)

	c1 := &Client{Address: "0xA", Send: make(chan OutgoingMessage, 1), Hub: hub}
	c2 := &Client{Address: "0xB", Send: make(chan OutgoingMessage, 1), Hub: hub}
	register(t, hub, c1)
	register(t, hub, c2)

	hub.SendToPlayer("0xA", OutgoingMessage{Event: "state", Data: "hello A"})

	received := <-c1.Send
	assert.Equal(t, "state", received.Event)
	assert.Equal(t, "hello A", received.Data)

	select {
	case <-c2.Send:
		assert.Fail(t, "B should NOT receive anything")
	default:
	}
}

// 缓冲区满时丢弃而不是阻塞调用方
func TestHubSendNeverBlocks(t *testing.T) {
	hub := startHub(t)
	c := &Client{Address: "0xA", Send: make(chan OutgoingMessage, 1), Hub: hub}
	register(t, hub, c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.SendToPlayer("0xA", OutgoingMessage{Event: "state"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToPlayer blocked on a full buffer")
	}
	assert.Len(t, c.Send, 1)
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := startHub(t)
	c := &Client{Address: "0xA", Send: make(chan OutgoingMessage, 1), Hub: hub}
	register(t, hub, c)

	hub.unregister <- c
	require.Eventually(t, func() bool {
		_, ok := hub.ClientByAddress("0xA")
		return !ok
	}, time.Second, time.Millisecond)

	_, open := <-c.Send
	assert.False(t, open, "Send should be closed after unregister")
}

// 重连替换旧连接，旧连接迟到的 unregister 不能踢掉新连接
func TestHubReconnectReplacesClient(t *testing.T) {
	hub := startHub(t)
	old := &Client{Address: "0xA", Send: make(chan OutgoingMessage, 1), Hub: hub}
	register(t, hub, old)

	fresh := &Client{Address: "0xA", Send: make(chan OutgoingMessage, 1), Hub: hub}
	register(t, hub, fresh)
	_, open := <-old.Send
	assert.False(t, open)

	hub.unregister <- old
	hub.SendToPlayer("0xA", OutgoingMessage{Event: "state"})
	assert.Equal(t, "state", (<-fresh.Send).Event)
}

func TestServeWSRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	incoming := make(chan IncomingMessage, 1)
	hub.OnIncoming = func(m IncomingMessage) { incoming <- m }

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { c.Set("address", c.Query("as")) }, ServeWS(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?as=0xA"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "player_action", "data": map[string]any{"intent": "check"}}))
	select {
	case m := <-incoming:
		assert.Equal(t, "0xA", m.From)
		assert.Equal(t, "player_action", m.Event)
		assert.JSONEq(t, `{"intent":"check"}`, string(m.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no incoming message")
	}

	require.Eventually(t, func() bool {
		_, ok := hub.ClientByAddress("0xA")
		return ok
	}, time.Second, time.Millisecond)
	hub.SendToPlayer("0xA", OutgoingMessage{Event: "state", Data: map[string]any{"round": 1}})
	var out map[string]any
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "state", out["event"])
}

// 坏消息回 bad_message，连接保持
func TestServeWSBadMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	incoming := make(chan IncomingMessage, 1)
	hub.OnIncoming = func(m IncomingMessage) { incoming <- m }

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { c.Set("address", "0xA") }, ServeWS(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var out map[string]any
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, EventBadMessage, out["event"])

	// from 以连接身份为准
	require.NoError(t, conn.WriteJSON(map[string]any{"from": "0xEvil", "event": "chat", "data": map[string]any{"text": "hi"}}))
	select {
	case m := <-incoming:
		assert.Equal(t, "0xA", m.From)
	case <-time.After(2 * time.Second):
		t.Fatal("connection should survive a bad message")
	}
}

func TestServeWSRequiresAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	r := gin.New()
	r.GET("/ws", ServeWS(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	assert.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func BenchmarkHubBroadcast(b *testing.B) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	c1 := &Client{Address: "0xA", Send: make(chan OutgoingMessage, 1024), Hub: hub}
	c2 := &Client{Address: "0xB", Send: make(chan OutgoingMessage, 1024), Hub: hub}
	go func() {
		for range c1.Send {
		}
	}()
	go func() {
		for range c2.Send {
		}
	}()
	hub.register <- c1
	hub.register <- c2

	b.ResetTimer()
	msg := OutgoingMessage{Event: "bench", Data: nil}
	for i := 0; i < b.N; i++ {
		hub.BroadcastToPlayers([]string{"0xA", "0xB"}, msg)
	}
}
