package table

import (
	"slices"
	"time"
)

type Phase string

const (
	PhaseFlop     Phase = "FLOP"
	PhaseTurn     Phase = "TURN"
	PhaseRiver    Phase = "RIVER"
	PhaseShowdown Phase = "SHOWDOWN"
	PhaseFold     Phase = "FOLD"
)

// Terminal 表示本轮已结束，等待下一轮发牌
func (p Phase) Terminal() bool {
	return p == PhaseShowdown || p == PhaseFold
}

type RevealChoice string

const (
	RevealUndecided RevealChoice = ""
	RevealShown     RevealChoice = "shown"
	RevealMucked    RevealChoice = "mucked"
)

// Player 玩家状态；Ready 只在大厅阶段使用
type Player struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Lives    int    `json:"lives"`
	Hole     []Card `json:"hole"`
	SnapUsed bool   `json:"snapUsed"`
	Ready    bool   `json:"ready"`
}

type SnapPending struct {
	ByID string `json:"byId"`
}

type LastAction struct {
	ByID   string    `json:"byId"`
	Intent string    `json:"intent"`
	At     time.Time `json:"at"`
}

// PostRound 本轮结果（弃牌或摊牌）
type PostRound struct {
	Outcome    Phase                   `json:"outcome"`
	WinnerID   string                  `json:"winnerId"`
	LoserID    string                  `json:"loserId"`
	Loss       int                     `json:"loss"`
	Reveal     map[string]RevealChoice `json:"reveal"`
	RevealAt   time.Time               `json:"revealAt"`
	DeadlineAt time.Time               `json:"deadlineAt"`
}

// Tie 摊牌平局没有输赢方
func (p *PostRound) Tie() bool {
	return p.WinnerID == "" && p.LoserID == ""
}

// Settled 双方都已决定亮牌或盖牌
func (p *PostRound) Settled() bool {
	if len(p.Reveal) == 0 {
		return false
	}
	for _, c := range p.Reveal {
		if c == RevealUndecided {
			return false
		}
	}
	return true
}

// Table 是一场对局的权威记录，由 engine 独占修改，store 只负责持久化
type Table struct {
	ID        string    `json:"id"`
	Pool      string    `json:"pool"`
	HostID    string    `json:"hostId"`
	Players   []*Player `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// 运行时状态
	Started        bool         `json:"started"`
	MatchOver      bool         `json:"matchOver"`
	WinnerID       string       `json:"winnerId"`
	Match          int          `json:"match"` // 第几场，重新开局时递增
	Round          int          `json:"round"`
	InPositionID   string       `json:"inPositionId"`
	ToActID        string       `json:"toActId"`
	Phase          Phase        `json:"phase"`
	Stakes         int          `json:"stakes"`
	SnapPending    *SnapPending `json:"snapPending"`
	LastAction     *LastAction  `json:"lastAction"`
	Community      []Card       `json:"community"`
	Deck           []Card       `json:"deck"`
	ActedThisPhase []string     `json:"actedThisPhase"`
	RiverDoubled   bool         `json:"riverDoubled"`
	PostRound      *PostRound   `json:"postRound"`

	Version int64 `json:"version"`
}

// New 创建只有房主的对局记录
func New(id, pool, hostID string, now time.Time) *Table {
	return &Table{
		ID:        id,
		Pool:      pool,
		HostID:    hostID,
		Players:   []*Player{},
		CreatedAt: now,
		UpdatedAt: now,
		Phase:     PhaseFlop,
		Stakes:    1,
	}
}

func (t *Table) Player(id string) *Player {
	for _, p := range t.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Opponent 返回对手；不在桌上或人数不足时返回 nil
func (t *Table) Opponent(id string) *Player {
	if len(t.Players) != 2 || t.Player(id) == nil {
		return nil
	}
	if t.Players[0].ID == id {
		return t.Players[1]
	}
	return t.Players[0]
}

// OutOfPositionID 每条街先行动的一方
func (t *Table) OutOfPositionID() string {
	if opp := t.Opponent(t.InPositionID); opp != nil {
		return opp.ID
	}
	return ""
}

func (t *Table) PlayerIDs() []string {
	ids := make([]string, 0, len(t.Players))
	for _, p := range t.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// Clone 深拷贝，engine 在副本上执行动作，失败时原记录不受影响
func (t *Table) Clone() *Table {
	c := *t
	c.Players = make([]*Player, len(t.Players))
	for i, p := range t.Players {
		cp := *p
		cp.Hole = slices.Clone(p.Hole)
		c.Players[i] = &cp
	}
	c.Community = slices.Clone(t.Community)
	c.Deck = slices.Clone(t.Deck)
	c.ActedThisPhase = slices.Clone(t.ActedThisPhase)
	if t.SnapPending != nil {
		sp := *t.SnapPending
		c.SnapPending = &sp
	}
	if t.LastAction != nil {
		la := *t.LastAction
		c.LastAction = &la
	}
	if t.PostRound != nil {
		pr := *t.PostRound
		pr.Reveal = make(map[string]RevealChoice, len(t.PostRound.Reveal))
		for k, v := range t.PostRound.Reveal {
			pr.Reveal[k] = v
		}
		c.PostRound = &pr
	}
	return &c
}
