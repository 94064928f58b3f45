package websocket

import (
	"sync"

	"github.com/charmbracelet/log"

	"SnapPoker/internal/utils"
)

type HubInterface interface {
	BroadcastToPlayers(addrs []string, msg OutgoingMessage)
	ClientByAddress(addr string) (*Client, bool)
	SendToPlayer(addr string, msg OutgoingMessage)
	Close()
}

// Hub 维护 address -> client。发送直接在调用方 goroutine 里非阻塞投递，
// engine 在处理玩家消息的过程中回推状态也不会和 Hub 互相等待。
type Hub struct {
	clients    map[string]*Client // address -> client
	register   chan *Client
	unregister chan *Client
	OnIncoming func(IncomingMessage)
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	logger     *log.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     utils.Named("hub"),
	}
}

func (h *Hub) Run() {
	h.logger.Info("hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			// 同一地址重复连接：踢掉旧连接
			if old, ok := h.clients[c.Address]; ok && old != c {
				close(old.Send)
			}
			h.clients[c.Address] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("register", "address", c.Address, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			// 只移除当前登记的那个连接，旧连接的 Send 已在替换时关闭
			if cur, ok := h.clients[c.Address]; ok && cur == c {
				delete(h.clients, c.Address)
				close(c.Send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("unregister", "address", c.Address, "clients", n)

		case <-h.quit:
			h.mu.Lock()
			for addr, c := range h.clients {
				close(c.Send)
				delete(h.clients, addr)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Dispatch 把玩家消息交给游戏层（GameManager）
func (h *Hub) Dispatch(msg IncomingMessage) {
	if h.OnIncoming != nil {
		h.OnIncoming(msg)
	}
}

// Broadcast to multiple players
func (h *Hub) BroadcastToPlayers(addrs []string, msg OutgoingMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, addr := range addrs {
		h.deliver(addr, msg)
	}
}

// Send to a single player (safe concurrent)
func (h *Hub) SendToPlayer(addr string, msg OutgoingMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(addr, msg)
}

// 调用方须持有读锁；缓冲区满时丢弃，客户端靠下一次 state 推送追上
func (h *Hub) deliver(addr string, msg OutgoingMessage) {
	client, ok := h.clients[addr]
	if !ok {
		return
	}
	select {
	case client.Send <- msg:
	default:
		h.logger.Warn("send buffer full, dropping", "address", addr, "event", msg.Event)
	}
}

// Lookup for a player client by address
func (h *Hub) ClientByAddress(addr string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[addr]
	return c, ok
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}
