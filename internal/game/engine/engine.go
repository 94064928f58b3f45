package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"SnapPoker/internal/game/dealer"
	"SnapPoker/internal/game/gameerr"
	"SnapPoker/internal/game/store"
	"SnapPoker/internal/game/table"
	"SnapPoker/internal/history"
	"SnapPoker/internal/utils"
	"SnapPoker/internal/websocket"
)

const (
	EventState     = "state"
	EventRoundOver = "round_over"
	EventMatchOver = "match_over"
)

type Settings struct {
	StartingLives int
	RevealDelay   time.Duration // 摊牌后多久亮出赢家底牌
	RevealWindow  time.Duration // 结算窗口，到期自动进入下一轮
}

func DefaultSettings() Settings {
	return Settings{
		StartingLives: 10,
		RevealDelay:   2 * time.Second,
		RevealWindow:  10 * time.Second,
	}
}

// Broadcaster 是 engine 需要的推送能力，websocket.Hub 实现了它
type Broadcaster interface {
	SendToPlayer(addr string, msg websocket.OutgoingMessage)
	BroadcastToPlayers(addrs []string, msg websocket.OutgoingMessage)
}

// ---------------------
//       ENGINE
// ---------------------

// Engine 串行处理一场对局的所有动作：load -> clone -> apply -> save(CAS) -> publish。
// 存储中的记录是唯一权威状态，engine 本身不缓存对局。
type Engine struct {
	MatchID string
	Dealer  *dealer.Dealer
	Hub     Broadcaster

	store    store.Store
	recorder history.Recorder
	clock    quartz.Clock
	settings Settings
	logger   *log.Logger

	actionChan chan request
	quit       chan struct{}
	done       chan struct{}
	started    atomic.Bool
	stopOnce   sync.Once

	timerMu sync.Mutex
	timers  []*quartz.Timer
}

type request struct {
	ctx    context.Context
	action Action
	reply  chan result
}

type result struct {
	table *table.Table
	err   error
}

type Option func(*Engine)

func WithClock(c quartz.Clock) Option { return func(e *Engine) { e.clock = c } }
func WithRecorder(r history.Recorder) Option { return func(e *Engine) { e.recorder = r } }
func WithSettings(s Settings) Option { return func(e *Engine) { e.settings = s } }
func WithDealer(d *dealer.Dealer) Option { return func(e *Engine) { e.Dealer = d } }
func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

func NewEngine(matchID string, st store.Store, hub Broadcaster, opts ...Option) *Engine {
	e := &Engine{
		MatchID:    matchID,
		Hub:        hub,
		store:      st,
		actionChan: make(chan request, 32),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = quartz.NewReal()
	}
	if e.Dealer == nil {
		e.Dealer = dealer.NewRandomDealer()
	}
	if e.settings == (Settings{}) {
		e.settings = DefaultSettings()
	}
	if e.logger == nil {
		e.logger = utils.Named("engine")
	}
	e.logger = e.logger.With("match", matchID)
	return e
}

// Start 启动 action loop；若记录停在结算窗口内，补上计时器
func (e *Engine) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	if t, err := e.store.Load(context.Background(), e.MatchID); err == nil && t.PostRound != nil && !t.MatchOver {
		e.scheduleDeadlines(t.PostRound, e.clock.Now())
	}
	go e.actionLoop()
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.quit)
		e.timerMu.Lock()
		for _, tm := range e.timers {
			tm.Stop()
		}
		e.timers = nil
		e.timerMu.Unlock()
		if e.started.Load() {
			<-e.done
		}
	})
}

// Submit 提交动作并等待结果。动作一旦被 loop 接收就会完整执行，ctx 取消只影响等待。
func (e *Engine) Submit(ctx context.Context, a Action) (*table.Table, error) {
	req := request{ctx: ctx, action: a, reply: make(chan result, 1)}
	select {
	case e.actionChan <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.quit:
		return nil, gameerr.ErrEngineStopped
	}
	select {
	case r := <-req.reply:
		return r.table, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.quit:
		return nil, gameerr.ErrEngineStopped
	}
}

// 动作循环：同一场对局的动作严格串行
func (e *Engine) actionLoop() {
	defer close(e.done)
	for {
		select {
		case req := <-e.actionChan:
			e.handle(req)
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) handle(req request) {
	ctx := context.WithoutCancel(req.ctx)
	now := e.clock.Now()
	a := req.action

	if a.Intent == IntentAdvance {
		t, advanced, err := e.advance(ctx, now)
		if err == nil && !advanced {
			// 亮牌时间到了也要推送一次
			e.publish(t, now)
		}
		req.reply <- result{table: t, err: err}
		return
	}

	// 每个动作前先按需检查结算窗口
	if _, _, err := e.advance(ctx, now); err != nil {
		req.reply <- result{err: err}
		return
	}

	t, err := e.apply(ctx, a, now)
	if err != nil {
		e.logger.Debug("intent rejected", "player", a.Player, "intent", a.Intent, "err", err)
		req.reply <- result{err: err}
		return
	}
	if a.Intent == IntentShow || a.Intent == IntentMuck {
		// 双方都选择完毕后可提前进入下一轮
		if _, _, err := e.advance(ctx, now); err != nil {
			e.logger.Warn("advance after reveal", "err", err)
		}
	}
	req.reply <- result{table: t.Clone()}
}

func (e *Engine) env(now time.Time) Env {
	return Env{Now: now, Dealer: e.Dealer, Settings: e.settings}
}

func (e *Engine) apply(ctx context.Context, a Action, now time.Time) (*table.Table, error) {
	cur, err := e.store.Load(ctx, e.MatchID)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	if err := Apply(next, a, e.env(now)); err != nil {
		return nil, err
	}
	if err := e.commit(ctx, cur, next, now); err != nil {
		return nil, err
	}
	e.logger.Debug("intent applied", "player", a.Player, "intent", a.Intent, "version", next.Version)
	return next, nil
}

// advance 返回当前（可能已推进的）记录以及是否发生了推进
func (e *Engine) advance(ctx context.Context, now time.Time) (*table.Table, bool, error) {
	cur, err := e.store.Load(ctx, e.MatchID)
	if err != nil {
		return nil, false, err
	}
	next := cur.Clone()
	advanced, err := AdvanceIfDeadlinePassed(next, e.env(now))
	if err != nil || !advanced {
		return cur, false, err
	}
	if err := e.commit(ctx, cur, next, now); err != nil {
		return nil, false, err
	}
	return next, true, nil
}

func (e *Engine) commit(ctx context.Context, cur, next *table.Table, now time.Time) error {
	next.Version = cur.Version + 1
	next.UpdatedAt = now
	if err := e.store.Save(ctx, next, cur.Version); err != nil {
		e.logger.Warn("save failed", "version", cur.Version, "err", err)
		return err
	}
	e.afterCommit(ctx, cur, next, now)
	return nil
}

func (e *Engine) afterCommit(ctx context.Context, cur, next *table.Table, now time.Time) {
	if cur.PostRound == nil && next.PostRound != nil {
		pr := next.PostRound
		e.logger.Info("round over", "round", next.Round, "outcome", pr.Outcome, "winner", pr.WinnerID, "loss", pr.Loss)
		e.record(ctx, next)
		e.scheduleDeadlines(pr, now)
		if e.Hub != nil {
			e.Hub.BroadcastToPlayers(next.PlayerIDs(), websocket.OutgoingMessage{
				Event: EventRoundOver,
				Data: map[string]any{
					"matchId":  next.ID,
					"round":    next.Round,
					"outcome":  pr.Outcome,
					"winnerId": pr.WinnerID,
					"loserId":  pr.LoserID,
					"loss":     pr.Loss,
				},
			})
		}
	}
	if next.MatchOver && !cur.MatchOver {
		e.logger.Info("match over", "winner", next.WinnerID, "rounds", next.Round)
		if e.Hub != nil {
			e.Hub.BroadcastToPlayers(next.PlayerIDs(), websocket.OutgoingMessage{
				Event: EventMatchOver,
				Data:  map[string]any{"matchId": next.ID, "winnerId": next.WinnerID},
			})
		}
	}
	e.publish(next, now)
}

// 历史记录失败不影响对局
func (e *Engine) record(ctx context.Context, t *table.Table) {
	if e.recorder == nil {
		return
	}
	pr := t.PostRound
	err := e.recorder.RecordRound(ctx, history.RoundRecord{
		MatchID:    t.ID,
		Match:      t.Match,
		Round:      t.Round,
		Outcome:    string(pr.Outcome),
		WinnerID:   pr.WinnerID,
		LoserID:    pr.LoserID,
		Loss:       pr.Loss,
		Stakes:     t.Stakes,
		FinishedAt: t.UpdatedAt,
	})
	if err != nil {
		e.logger.Error("record round", "round", t.Round, "err", err)
	}
}

func (e *Engine) publish(t *table.Table, now time.Time) {
	if e.Hub == nil || t == nil {
		return
	}
	for _, id := range t.PlayerIDs() {
		e.Hub.SendToPlayer(id, websocket.OutgoingMessage{Event: EventState, Data: ViewFor(t, id, now)})
	}
}

// scheduleDeadlines 只保留当前 post-round 的两个定时器，上一轮的已经没用
func (e *Engine) scheduleDeadlines(pr *table.PostRound, now time.Time) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	for _, tm := range e.timers {
		tm.Stop()
	}
	e.timers = e.timers[:0]
	select {
	case <-e.quit:
		return
	default:
	}
	for _, at := range []time.Time{pr.RevealAt, pr.DeadlineAt} {
		if d := at.Sub(now); d > 0 {
			e.schedule(d)
		}
	}
}

// 调用方持有 timerMu
func (e *Engine) schedule(d time.Duration) {
	tm := e.clock.AfterFunc(d, func() {
		if _, err := e.Submit(context.Background(), Action{Intent: IntentAdvance}); err != nil {
			e.logger.Debug("scheduled advance", "err", err)
		}
	}, "engine", "deadline")
	e.timers = append(e.timers, tm)
}
