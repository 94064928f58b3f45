package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thoas/go-funk"

	"SnapPoker/internal/game/dealer"
	"SnapPoker/internal/game/evaluator"
	"SnapPoker/internal/game/gameerr"
	"SnapPoker/internal/game/table"
)

// ---------------------
//   ACTION DEFINITION
// ---------------------

type Intent string

const (
	IntentCheck  Intent = "check"
	IntentSnap   Intent = "snap"
	IntentAccept Intent = "accept"
	IntentFold   Intent = "fold"
	IntentShow   Intent = "show"
	IntentMuck   Intent = "muck"

	// 大厅
	IntentJoin   Intent = "join"
	IntentRename Intent = "rename"
	IntentReady  Intent = "ready"

	// 系统内部，不接受客户端提交
	IntentStart   Intent = "start"
	IntentAdvance Intent = "advance"
)

// System 系统动作只能由服务端发起
func (i Intent) System() bool {
	return i == IntentStart || i == IntentAdvance
}

type Action struct {
	Player   string
	Intent   Intent
	Nickname string
	Ready    bool
}

// Env 一次状态转移所需的外部输入
type Env struct {
	Now      time.Time
	Dealer   *dealer.Dealer
	Settings Settings
}

// Classify 面对对手的 snap 时，check 视为跟注（accept）
func Classify(t *table.Table, playerID string, in Intent) Intent {
	if in == IntentCheck && t.SnapPending != nil && t.SnapPending.ByID != playerID {
		return IntentAccept
	}
	return in
}

// Apply 在 t 上执行一个动作；出错时 t 可能已被部分修改，调用方应丢弃副本
func Apply(t *table.Table, a Action, env Env) error {
	switch a.Intent {
	case IntentStart:
		return startMatch(t, env)
	case IntentJoin:
		return join(t, a.Player, env)
	case IntentRename:
		return rename(t, a.Player, a.Nickname)
	case IntentReady:
		return ready(t, a.Player, a.Ready, env)
	case IntentShow, IntentMuck:
		return reveal(t, a.Player, a.Intent == IntentShow)
	case IntentCheck, IntentSnap, IntentAccept, IntentFold:
		if err := validateTurn(t, a.Player); err != nil {
			return err
		}
		switch Classify(t, a.Player, a.Intent) {
		case IntentCheck:
			return check(t, a.Player, env)
		case IntentSnap:
			return snap(t, a.Player, env)
		case IntentAccept:
			return accept(t, a.Player, env)
		case IntentFold:
			return fold(t, a.Player, env)
		}
	}
	return fmt.Errorf("%q: %w", a.Intent, gameerr.ErrUnknownIntent)
}

func validateTurn(t *table.Table, playerID string) error {
	if len(t.Players) < 2 {
		return gameerr.ErrNeedTwoPlayers
	}
	if t.Player(playerID) == nil {
		return gameerr.ErrNotInMatch
	}
	if t.ToActID != playerID {
		return gameerr.ErrNotYourTurn
	}
	return nil
}

func record(t *table.Table, playerID string, in Intent, now time.Time) {
	t.LastAction = &table.LastAction{ByID: playerID, Intent: string(in), At: now}
}

// --------------------------
//        下注动作
// --------------------------

func check(t *table.Table, playerID string, env Env) error {
	if !funk.ContainsString(t.ActedThisPhase, playerID) {
		t.ActedThisPhase = append(t.ActedThisPhase, playerID)
	}
	record(t, playerID, IntentCheck, env.Now)

	if len(t.ActedThisPhase) >= 2 {
		return advancePhase(t, env)
	}
	t.ToActID = t.Opponent(playerID).ID
	return nil
}

func snap(t *table.Table, playerID string, env Env) error {
	me := t.Player(playerID)
	if me.SnapUsed {
		return gameerr.ErrSnapAlreadyUsed
	}
	if t.Stakes >= StakesCap(t) {
		return gameerr.ErrStakesAtCap
	}

	// snap back：对手的 snap 仍在等待时立即翻倍
	if t.SnapPending != nil && t.SnapPending.ByID != playerID {
		t.Stakes = clampStakes(t, t.Stakes*2)
	}
	t.SnapPending = &table.SnapPending{ByID: playerID}
	me.SnapUsed = true
	t.ToActID = t.Opponent(playerID).ID
	record(t, playerID, IntentSnap, env.Now)
	return nil
}

func accept(t *table.Table, playerID string, env Env) error {
	if t.SnapPending == nil {
		return gameerr.ErrNothingToCall
	}
	t.Stakes = clampStakes(t, t.Stakes*2)
	t.SnapPending = nil
	record(t, playerID, IntentAccept, env.Now)

	// 跟注总是结束当前下注轮
	return advancePhase(t, env)
}

func fold(t *table.Table, playerID string, env Env) error {
	me, opp := t.Player(playerID), t.Opponent(playerID)
	loss := t.Stakes
	loseLives(me, loss)

	t.Phase = table.PhaseFold
	t.SnapPending = nil
	t.ToActID = ""
	t.PostRound = &table.PostRound{
		Outcome:  table.PhaseFold,
		WinnerID: opp.ID,
		LoserID:  me.ID,
		Loss:     loss,
		Reveal: map[string]table.RevealChoice{
			me.ID:  table.RevealUndecided,
			opp.ID: table.RevealUndecided,
		},
		RevealAt:   env.Now,
		DeadlineAt: env.Now.Add(env.Settings.RevealWindow),
	}
	record(t, playerID, IntentFold, env.Now)
	return nil
}

// --------------------------
//        下一阶段逻辑
// --------------------------

func advancePhase(t *table.Table, env Env) error {
	switch t.Phase {
	case table.PhaseFlop:
		return dealStreet(t, table.PhaseTurn)
	case table.PhaseTurn:
		return dealStreet(t, table.PhaseRiver)
	case table.PhaseRiver:
		// 河牌自动翻倍，每轮最多一次
		if !t.RiverDoubled {
			t.Stakes = clampStakes(t, t.Stakes*2)
			t.RiverDoubled = true
		}
		return showdown(t, env)
	}
	return fmt.Errorf("cannot advance from phase %s", t.Phase)
}

func dealStreet(t *table.Table, next table.Phase) error {
	cards, rest, err := dealer.Draw(t.Deck, 1)
	if err != nil {
		return err
	}
	t.Community = append(t.Community, cards...)
	t.Deck = rest
	t.Phase = next
	t.ActedThisPhase = nil
	t.ToActID = t.OutOfPositionID()
	return nil
}

func showdown(t *table.Table, env Env) error {
	a, b := t.Players[0], t.Players[1]
	ra, err := evaluator.BestHand(append(slices.Clone(a.Hole), t.Community...))
	if err != nil {
		return err
	}
	rb, err := evaluator.BestHand(append(slices.Clone(b.Hole), t.Community...))
	if err != nil {
		return err
	}

	t.Phase = table.PhaseShowdown
	t.SnapPending = nil
	t.ToActID = ""
	pr := &table.PostRound{
		Outcome:    table.PhaseShowdown,
		RevealAt:   env.Now.Add(env.Settings.RevealDelay),
		DeadlineAt: env.Now.Add(env.Settings.RevealWindow),
	}
	t.PostRound = pr

	cmp := evaluator.Compare(ra.Rank, rb.Rank)
	if cmp == 0 {
		pr.Reveal = map[string]table.RevealChoice{a.ID: table.RevealShown, b.ID: table.RevealShown}
		return nil
	}

	winner, loser := a, b
	if cmp < 0 {
		winner, loser = b, a
	}
	loseLives(loser, t.Stakes)
	pr.WinnerID = winner.ID
	pr.LoserID = loser.ID
	pr.Loss = t.Stakes
	pr.Reveal = map[string]table.RevealChoice{winner.ID: table.RevealShown, loser.ID: table.RevealUndecided}
	return nil
}

// --------------------------
//        亮牌 / 盖牌
// --------------------------

func reveal(t *table.Table, playerID string, show bool) error {
	if t.PostRound == nil {
		return gameerr.ErrNoActivePostRound
	}
	if t.Player(playerID) == nil {
		return gameerr.ErrNotInMatch
	}
	choice := table.RevealMucked
	if show {
		choice = table.RevealShown
	}
	switch cur := t.PostRound.Reveal[playerID]; cur {
	case choice:
		return nil
	case table.RevealUndecided:
		t.PostRound.Reveal[playerID] = choice
		return nil
	}
	return gameerr.ErrRevealSettled
}

// AdvanceIfDeadlinePassed 结算窗口结束（或双方都已选择且过了亮牌延迟）后进入下一轮，
// 有玩家生命归零则整场结束。返回是否发生了变化。
func AdvanceIfDeadlinePassed(t *table.Table, env Env) (bool, error) {
	pr := t.PostRound
	if pr == nil || t.MatchOver {
		return false, nil
	}
	due := !env.Now.Before(pr.DeadlineAt) || (pr.Settled() && !env.Now.Before(pr.RevealAt))
	if !due {
		return false, nil
	}
	if len(t.Players) < 2 {
		return false, gameerr.ErrNeedTwoPlayers
	}
	if t.Players[0].Lives > 0 && t.Players[1].Lives > 0 {
		return true, DealNextRound(t, env)
	}
	endMatch(t)
	return true, nil
}

func endMatch(t *table.Table) {
	t.Started = false
	t.MatchOver = true
	t.ToActID = ""
	for _, p := range t.Players {
		if p.Lives > 0 {
			t.WinnerID = p.ID
		}
	}
}

// DealNextRound 新牌堆、新底牌，位置互换，筹码重置为 1
func DealNextRound(t *table.Table, env Env) error {
	if len(t.Players) < 2 {
		return gameerr.ErrNeedTwoPlayers
	}
	if t.Players[0].Lives <= 0 || t.Players[1].Lives <= 0 {
		return gameerr.ErrMatchOver
	}
	if err := deal(t, t.OutOfPositionID(), env); err != nil {
		return err
	}
	t.Round++
	return nil
}

func deal(t *table.Table, inPositionID string, env Env) error {
	hand, err := env.Dealer.DealRound()
	if err != nil {
		return err
	}
	for i, p := range t.Players {
		p.Hole = hand.Holes[i]
		p.SnapUsed = false
		p.Ready = false
	}
	t.Community = hand.Flop
	t.Deck = hand.Deck
	t.Phase = table.PhaseFlop
	t.InPositionID = inPositionID
	t.ToActID = t.OutOfPositionID()
	t.Stakes = 1
	t.SnapPending = nil
	t.LastAction = nil
	t.ActedThisPhase = nil
	t.RiverDoubled = false
	t.PostRound = nil
	return nil
}

// --------------------------
//        大厅 / 开局
// --------------------------

func startMatch(t *table.Table, env Env) error {
	if len(t.Players) < 2 {
		return gameerr.ErrNeedTwoPlayers
	}
	if t.Started {
		return gameerr.ErrMatchStarted
	}

	ip := t.InPositionID
	if t.MatchOver || t.Round == 0 || t.Players[0].Lives <= 0 || t.Players[1].Lives <= 0 {
		for _, p := range t.Players {
			p.Lives = env.Settings.StartingLives
		}
		ip = t.HostID
		t.Match++
		t.Round = 1
	}
	if t.Player(ip) == nil {
		ip = t.Players[0].ID
	}
	if err := deal(t, ip, env); err != nil {
		return err
	}
	t.Started = true
	t.MatchOver = false
	t.WinnerID = ""
	return nil
}

func join(t *table.Table, playerID string, env Env) error {
	if t.Player(playerID) != nil {
		return nil
	}
	if len(t.Players) >= 2 {
		return gameerr.ErrLobbyFull
	}
	t.Players = append(t.Players, &table.Player{
		ID:       playerID,
		Nickname: fmt.Sprintf("Player %d", len(t.Players)+1),
		Lives:    env.Settings.StartingLives,
	})
	return nil
}

func rename(t *table.Table, playerID, nickname string) error {
	p := t.Player(playerID)
	if p == nil {
		return gameerr.ErrNotInMatch
	}
	nickname = strings.TrimSpace(nickname)
	if n := utf8.RuneCountInString(nickname); n == 0 || n > 24 {
		return gameerr.ErrInvalidNickname
	}
	p.Nickname = nickname
	return nil
}

func ready(t *table.Table, playerID string, isReady bool, env Env) error {
	p := t.Player(playerID)
	if p == nil {
		return gameerr.ErrNotInMatch
	}
	if t.Started {
		return gameerr.ErrMatchStarted
	}
	p.Ready = isReady
	if len(t.Players) == 2 && t.Players[0].Ready && t.Players[1].Ready {
		return startMatch(t, env)
	}
	return nil
}
