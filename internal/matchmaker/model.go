package matchmaker

import "time"

// TableSize Snap 固定两人对局
const TableSize = 2

const DefaultPool = "casual"

// JoinRequest 前端提交的匹配请求；pool 为空时进入 casual
type JoinRequest struct {
	Address string `json:"address"`
	Pool    string `json:"pool"`
}

// JoinResponse 返回是否已成桌；若已成桌则给出对局信息
type JoinResponse struct {
	Queued  bool     `json:"queued"`
	RoomID  string   `json:"roomId,omitempty"`
	Players []string `json:"players,omitempty"`
	Pool    string   `json:"pool"`
}

// Room 组桌结果，ID 同时也是对局 ID
type Room struct {
	ID        string    `json:"id"`
	Pool      string    `json:"pool"`
	Players   []string  `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
}
