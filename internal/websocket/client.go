package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 << 10
	sendBuffer     = 32

	EventBadMessage = "bad_message"
)

// Client 一个玩家的一条连接。Send 只由 Hub 关闭。
type Client struct {
	Address string
	Conn    *websocket.Conn
	Send    chan OutgoingMessage
	Hub     *Hub
}

func newClient(hub *Hub, addr string, conn *websocket.Conn) *Client {
	return &Client{Address: addr, Conn: conn, Send: make(chan OutgoingMessage, sendBuffer), Hub: hub}
}

// serve 启动读写两个协程，注册由调用方完成
func (c *Client) serve() {
	go c.writeLoop()
	go c.readLoop()
}

// trySend 直接回给本连接，缓冲满就丢
func (c *Client) trySend(msg OutgoingMessage) {
	defer func() { _ = recover() }() // Send 可能已被 Hub 关闭
	select {
	case c.Send <- msg:
	default:
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.Conn.Close()
	}()

	for {
		var err error
		select {
		case msg, open := <-c.Send:
			if !open {
				// 被新连接替换或 Hub 关闭
				c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = c.Conn.WriteJSON(msg)
		case <-ping.C:
			err = c.writeControl(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) writeControl(kind int, payload []byte) error {
	return c.Conn.WriteControl(kind, payload, time.Now().Add(writeWait))
}

// readLoop 按到达顺序交给 Hub.Dispatch，同一玩家的动作不会乱序。
// 解析失败的消息只回一个 bad_message，不断开连接。
func (c *Client) readLoop() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.quit:
		}
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.Hub.logger.Debug("read", "address", c.Address, "err", err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			if err == nil {
				err = errors.New("missing event")
			}
			c.trySend(OutgoingMessage{Event: EventBadMessage, Data: map[string]any{"error": err.Error()}})
			continue
		}
		msg.From = c.Address // 不信任客户端自带的 from
		c.Hub.Dispatch(msg)
	}
}
