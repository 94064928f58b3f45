package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"SnapPoker/internal/game/dealer"
	"SnapPoker/internal/game/engine"
	"SnapPoker/internal/game/gameerr"
	"SnapPoker/internal/game/store"
	"SnapPoker/internal/game/table"
	"SnapPoker/internal/history"
	"SnapPoker/internal/matchmaker"
	"SnapPoker/internal/utils"
	"SnapPoker/internal/websocket"
)

const (
	LobbyPool     = "lobby"
	codeAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength    = 4
	codeAttempts  = 16
	EventError    = "error"
	EventChat     = "chat"
	EventAction   = "player_action"
	maxChatLength = 280

	DefaultIdleTimeout = 10 * time.Minute
)

// GameManager 管理所有对局：match ID -> engine，玩家 -> 当前对局
type GameManager struct {
	mu           sync.RWMutex
	engines      map[string]*engine.Engine // matchID → engine
	playerToRoom map[string]string         // player address → matchID
	hub          engine.Broadcaster

	store     store.Store
	recorder  history.Recorder
	clock     quartz.Clock
	settings  engine.Settings
	newDealer func() *dealer.Dealer
	newCode   func() string
	idle      time.Duration
	logger    *log.Logger
}

type Option func(*GameManager)

func WithStore(s store.Store) Option { return func(m *GameManager) { m.store = s } }
func WithRecorder(r history.Recorder) Option { return func(m *GameManager) { m.recorder = r } }
func WithClock(c quartz.Clock) Option { return func(m *GameManager) { m.clock = c } }
func WithSettings(s engine.Settings) Option { return func(m *GameManager) { m.settings = s } }
func WithDealerFactory(f func() *dealer.Dealer) Option { return func(m *GameManager) { m.newDealer = f } }
func WithCodeGenerator(f func() string) Option { return func(m *GameManager) { m.newCode = f } }
func WithLogger(l *log.Logger) Option { return func(m *GameManager) { m.logger = l } }
func WithIdleTimeout(d time.Duration) Option { return func(m *GameManager) { m.idle = d } }

func NewGameManager(hub engine.Broadcaster, opts ...Option) *GameManager {
	m := &GameManager{
		engines:      make(map[string]*engine.Engine),
		playerToRoom: make(map[string]string),
		hub:          hub,
		settings:     engine.DefaultSettings(),
		newDealer:    dealer.NewRandomDealer,
		newCode:      lobbyCode,
		idle:         DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = store.NewMemoryStore()
	}
	if m.recorder == nil {
		m.recorder = history.NewMemoryRecorder()
	}
	if m.clock == nil {
		m.clock = quartz.NewReal()
	}
	if m.logger == nil {
		m.logger = utils.Named("manager")
	}
	return m
}

func lobbyCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

// 调用方须持有写锁
func (m *GameManager) spawn(matchID string) *engine.Engine {
	eng := engine.NewEngine(matchID, m.store, m.hub,
		engine.WithClock(m.clock),
		engine.WithRecorder(m.recorder),
		engine.WithSettings(m.settings),
		engine.WithDealer(m.newDealer()),
		engine.WithLogger(m.logger.WithPrefix("engine")),
	)
	m.engines[matchID] = eng
	eng.Start()
	return eng
}

// engineFor 返回对局的 engine；记录存在但本进程还没有 engine 时（例如重启后）补建一个
func (m *GameManager) engineFor(ctx context.Context, matchID string) (*engine.Engine, error) {
	m.mu.RLock()
	eng := m.engines[matchID]
	m.mu.RUnlock()
	if eng != nil {
		return eng, nil
	}

	if _, err := m.store.Load(ctx, matchID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if eng := m.engines[matchID]; eng != nil {
		return eng, nil
	}
	return m.spawn(matchID), nil
}

func (m *GameManager) bind(matchID string, players ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range players {
		m.playerToRoom[p] = matchID
	}
}

// MatchOf 玩家当前所在对局
func (m *GameManager) MatchOf(player string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playerToRoom[player]
}

// create 保存只有座位、尚未开局的记录并启动 engine
func (m *GameManager) create(ctx context.Context, t *table.Table, players ...string) error {
	env := engine.Env{Now: m.clock.Now(), Settings: m.settings}
	for _, p := range players {
		if err := engine.Apply(t, engine.Action{Player: p, Intent: engine.IntentJoin}, env); err != nil {
			return err
		}
	}
	t.Version = 1

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.engines[t.ID]; ok {
		return fmt.Errorf("match %s: %w", t.ID, gameerr.ErrMatchExists)
	}
	if err := m.store.Save(ctx, t, 0); err != nil {
		return err
	}
	m.spawn(t.ID)
	for _, p := range players {
		m.playerToRoom[p] = t.ID
	}
	return nil
}

// StartRoom 匹配成功的两人直接开局
func (m *GameManager) StartRoom(ctx context.Context, r *matchmaker.Room) error {
	if len(r.Players) != matchmaker.TableSize {
		return fmt.Errorf("room %s has %d players: %w", r.ID, len(r.Players), gameerr.ErrNeedTwoPlayers)
	}
	t := table.New(r.ID, r.Pool, r.Players[0], m.clock.Now())
	if err := m.create(ctx, t, r.Players...); err != nil {
		return err
	}
	m.logger.Info("room started", "match", r.ID, "players", r.Players)

	eng, err := m.engineFor(ctx, r.ID)
	if err != nil {
		return err
	}
	_, err = eng.Submit(ctx, engine.Action{Intent: engine.IntentStart})
	return err
}

// CreateLobby 建立私人房间，房主坐 1 号位，返回 4 位房间码对应的记录
func (m *GameManager) CreateLobby(ctx context.Context, hostID string) (*table.Table, error) {
	for i := 0; i < codeAttempts; i++ {
		t := table.New(m.newCode(), LobbyPool, hostID, m.clock.Now())
		err := m.create(ctx, t, hostID)
		if errors.Is(err, gameerr.ErrMatchExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		m.logger.Info("lobby created", "match", t.ID, "host", hostID)
		return t, nil
	}
	return nil, fmt.Errorf("no free lobby code after %d attempts: %w", codeAttempts, gameerr.ErrMatchExists)
}

func (m *GameManager) JoinLobby(ctx context.Context, code, playerID string) (*table.Table, error) {
	return m.SubmitIntent(ctx, strings.ToUpper(strings.TrimSpace(code)), engine.Action{Player: playerID, Intent: engine.IntentJoin})
}

// SubmitIntent 客户端动作入口；系统动作不允许外部提交
func (m *GameManager) SubmitIntent(ctx context.Context, matchID string, a engine.Action) (*table.Table, error) {
	if a.Intent.System() {
		return nil, fmt.Errorf("%q: %w", a.Intent, gameerr.ErrUnknownIntent)
	}
	eng, err := m.engineFor(ctx, matchID)
	if err != nil {
		return nil, err
	}
	t, err := eng.Submit(ctx, a)
	if errors.Is(err, gameerr.ErrMatchNotFound) {
		// 记录已过期
		m.drop(matchID, eng)
	}
	if err != nil {
		return nil, err
	}
	if a.Intent == engine.IntentJoin {
		m.bind(matchID, a.Player)
	}
	return t, nil
}

// AdvanceIfDeadlinePassed 显式轮询；没到期时原样返回记录
func (m *GameManager) AdvanceIfDeadlinePassed(ctx context.Context, matchID string) (*table.Table, error) {
	eng, err := m.engineFor(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return eng.Submit(ctx, engine.Action{Intent: engine.IntentAdvance})
}

// View 读取记录并按玩家裁剪
func (m *GameManager) View(ctx context.Context, matchID, playerID string) (engine.View, error) {
	t, err := m.store.Load(ctx, matchID)
	if err != nil {
		return engine.View{}, err
	}
	if t.Player(playerID) == nil {
		return engine.View{}, gameerr.ErrNotInMatch
	}
	return engine.ViewFor(t, playerID, m.clock.Now()), nil
}

// Clock 视图裁剪用的时钟，与 engine 一致
func (m *GameManager) Clock() quartz.Clock { return m.clock }

// actionPayload websocket player_action 的 data
type actionPayload struct {
	MatchID  string `json:"matchId"`
	Intent   string `json:"intent"`
	Nickname string `json:"nickname"`
	Ready    bool   `json:"ready"`
}

type chatPayload struct {
	MatchID string `json:"matchId"`
	Text    string `json:"text"`
}

// HandlePlayerMessage 统一入口（来自 Hub.OnIncoming）
func (m *GameManager) HandlePlayerMessage(msg websocket.IncomingMessage) {
	ctx := context.Background()

	switch msg.Event {
	case EventAction:
		var p actionPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			m.replyError(msg.From, fmt.Errorf("decode %s: %w", msg.Event, gameerr.ErrUnknownIntent))
			return
		}
		matchID := p.MatchID
		if matchID == "" {
			matchID = m.MatchOf(msg.From)
		}
		_, err := m.SubmitIntent(ctx, matchID, engine.Action{
			Player:   msg.From,
			Intent:   engine.Intent(p.Intent),
			Nickname: p.Nickname,
			Ready:    p.Ready,
		})
		if err != nil {
			m.replyError(msg.From, err)
		}

	case EventChat:
		// 桌内聊天广播
		var p chatPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || strings.TrimSpace(p.Text) == "" {
			return
		}
		matchID := p.MatchID
		if matchID == "" {
			matchID = m.MatchOf(msg.From)
		}
		t, err := m.store.Load(ctx, matchID)
		if err != nil || t.Player(msg.From) == nil || m.hub == nil {
			return
		}
		text := []rune(strings.TrimSpace(p.Text))
		if len(text) > maxChatLength {
			text = text[:maxChatLength]
		}
		m.hub.BroadcastToPlayers(t.PlayerIDs(), websocket.OutgoingMessage{
			Event: EventChat,
			Data: map[string]any{
				"matchId": matchID,
				"from":    msg.From,
				"text":    string(text),
			},
		})

	default:
		m.logger.Debug("ignored message", "from", msg.From, "event", msg.Event)
	}
}

func (m *GameManager) replyError(addr string, err error) {
	if m.hub == nil {
		return
	}
	m.hub.SendToPlayer(addr, websocket.OutgoingMessage{
		Event: EventError,
		Data:  map[string]any{"error": err.Error(), "code": gameerr.CodeOf(err)},
	})
}

// drop 停掉 engine 并解除玩家绑定；engine 已被替换时什么都不做
func (m *GameManager) drop(matchID string, eng *engine.Engine) bool {
	m.mu.Lock()
	if cur := m.engines[matchID]; cur == nil || cur != eng {
		m.mu.Unlock()
		return false
	}
	delete(m.engines, matchID)
	for p, id := range m.playerToRoom {
		if id == matchID {
			delete(m.playerToRoom, p)
		}
	}
	m.mu.Unlock()
	eng.Stop()
	return true
}

// Reap 回收不再需要的对局：记录已过期的，以及未开局（含已结束）且闲置超过 idle 的。
// 后者的记录同时从 store 删除，房间码可以重新分配。返回回收数量。
func (m *GameManager) Reap(ctx context.Context) int {
	m.mu.RLock()
	engines := make(map[string]*engine.Engine, len(m.engines))
	for id, eng := range m.engines {
		engines[id] = eng
	}
	m.mu.RUnlock()

	now := m.clock.Now()
	reaped := 0
	for id, eng := range engines {
		t, err := m.store.Load(ctx, id)
		switch {
		case errors.Is(err, gameerr.ErrMatchNotFound):
		case err != nil:
			m.logger.Warn("reap load", "match", id, "err", err)
			continue
		case !t.Started && now.Sub(t.UpdatedAt) >= m.idle:
			if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, gameerr.ErrMatchNotFound) {
				m.logger.Warn("reap delete", "match", id, "err", err)
				continue
			}
		default:
			continue
		}
		if m.drop(id, eng) {
			reaped++
			m.logger.Debug("match reaped", "match", id)
		}
	}
	return reaped
}

// StartReaper 按 interval 定期 Reap，ctx 结束时停止
func (m *GameManager) StartReaper(ctx context.Context, interval time.Duration) {
	m.clock.TickerFunc(ctx, interval, func() error {
		if n := m.Reap(ctx); n > 0 {
			m.logger.Info("reaped matches", "count", n)
		}
		return nil
	}, "manager", "reaper")
}

// Shutdown 停止所有 engine，记录保留在 store 中
func (m *GameManager) Shutdown() {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[string]*engine.Engine)
	m.mu.Unlock()

	for id, eng := range engines {
		eng.Stop()
		m.logger.Debug("engine stopped", "match", id)
	}
}
