package engine

import (
	"slices"
	"time"

	"SnapPoker/internal/game/evaluator"
	"SnapPoker/internal/game/table"
)

type PlayerView struct {
	ID       string       `json:"id"`
	Nickname string       `json:"nickname"`
	Lives    int          `json:"lives"`
	Hole     []table.Card `json:"hole,omitempty"`
	SnapUsed bool         `json:"snapUsed"`
	Ready    bool         `json:"ready"`
	Revealed bool         `json:"revealed"`
}

// HandView 观察者自己的最佳牌型；Indices 指向 Hole+Community 拼接后的下标
type HandView struct {
	Label   string             `json:"label"`
	Rank    evaluator.HandRank `json:"rank"`
	Indices []int              `json:"indices"`
}

// View 是发给某个玩家的裁剪视图：牌堆永不下发，对手底牌按亮牌规则决定是否可见
type View struct {
	MatchID      string             `json:"matchId"`
	You          string             `json:"you"`
	HostID       string             `json:"hostId"`
	Players      []PlayerView       `json:"players"`
	Started      bool               `json:"started"`
	MatchOver    bool               `json:"matchOver"`
	WinnerID     string             `json:"winnerId,omitempty"`
	Match        int                `json:"match"`
	Round        int                `json:"round"`
	InPositionID string             `json:"inPositionId"`
	ToActID      string             `json:"toActId"`
	Phase        table.Phase        `json:"phase"`
	Stakes       int                `json:"stakes"`
	StakesCap    int                `json:"stakesCap"`
	SnapPending  *table.SnapPending `json:"snapPending,omitempty"`
	LastAction   *table.LastAction  `json:"lastAction,omitempty"`
	Community    []table.Card       `json:"community"`
	PostRound    *table.PostRound   `json:"postRound,omitempty"`
	Hand         *HandView          `json:"hand,omitempty"`
	Version      int64              `json:"version"`
}

func ViewFor(t *table.Table, viewerID string, now time.Time) View {
	v := View{
		MatchID:      t.ID,
		You:          viewerID,
		HostID:       t.HostID,
		Started:      t.Started,
		MatchOver:    t.MatchOver,
		WinnerID:     t.WinnerID,
		Match:        t.Match,
		Round:        t.Round,
		InPositionID: t.InPositionID,
		ToActID:      t.ToActID,
		Phase:        t.Phase,
		Stakes:       t.Stakes,
		StakesCap:    StakesCap(t),
		Community:    slices.Clone(t.Community),
		Version:      t.Version,
	}
	if t.SnapPending != nil {
		sp := *t.SnapPending
		v.SnapPending = &sp
	}
	if t.LastAction != nil {
		la := *t.LastAction
		v.LastAction = &la
	}
	if t.PostRound != nil {
		v.PostRound = t.Clone().PostRound
	}

	for _, p := range t.Players {
		pv := PlayerView{
			ID:       p.ID,
			Nickname: p.Nickname,
			Lives:    p.Lives,
			SnapUsed: p.SnapUsed,
			Ready:    p.Ready,
		}
		if p.ID == viewerID || holeRevealed(t, p.ID, now) {
			pv.Hole = slices.Clone(p.Hole)
			pv.Revealed = p.ID != viewerID
		}
		v.Players = append(v.Players, pv)

		if p.ID == viewerID && len(p.Hole)+len(t.Community) >= 5 {
			if best, err := evaluator.BestHand(append(slices.Clone(p.Hole), t.Community...)); err == nil {
				v.Hand = &HandView{Label: evaluator.Label(best.Rank), Rank: best.Rank, Indices: best.Indices}
			}
		}
	}
	return v
}

// holeRevealed 摊牌自动亮出的牌（赢家或平局双方）要等到 RevealAt；主动亮牌立即可见
func holeRevealed(t *table.Table, ownerID string, now time.Time) bool {
	pr := t.PostRound
	if pr == nil || pr.Reveal[ownerID] != table.RevealShown {
		return false
	}
	automatic := pr.Outcome == table.PhaseShowdown && (pr.Tie() || pr.WinnerID == ownerID)
	if automatic {
		return !now.Before(pr.RevealAt)
	}
	return true
}
