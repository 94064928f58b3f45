package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"SnapPoker/internal/utils"
	"SnapPoker/internal/websocket"
)

var (
	ErrAlreadyInRoom  = errors.New("player already in room")
	ErrMissingAddress = errors.New("address required")
)

type Service struct {
	repo        Repo
	playerTTL   int // seconds, 用于防止遗留队列
	hub         HubBroadcaster
	logger      *log.Logger
	OnRoomReady func(*Room) // 成桌时调用，由 manager 创建对局
}

type HubBroadcaster interface {
	BroadcastToPlayers(addrs []string, msg websocket.OutgoingMessage)
}

func NewService(repo Repo, playerTTL int, hub HubBroadcaster) *Service {
	return &Service{repo: repo, playerTTL: playerTTL, hub: hub, logger: utils.Named("matchmaker")}
}

// Join 入队并尝试立即成桌（随机两人）。若可成桌，返回房间；否则返回排队中。
func (s *Service) Join(ctx context.Context, req JoinRequest) (*Room, bool, error) {
	if req.Address == "" {
		return nil, false, ErrMissingAddress
	}
	pool := strings.TrimSpace(req.Pool)
	if pool == "" {
		pool = DefaultPool
	}

	// 防止重复匹配：检测玩家是否已经在房间中
	rooms, hasRooms := s.repo.(RoomStore)
	if hasRooms {
		roomID, err := rooms.GetPlayerRoom(ctx, req.Address)
		if err != nil {
			return nil, false, err
		}
		if roomID != "" {
			return nil, false, fmt.Errorf("%s in %s: %w", req.Address, roomID, ErrAlreadyInRoom)
		}
	}

	if err := s.repo.Enqueue(ctx, pool, req.Address, s.playerTTL); err != nil {
		return nil, false, err
	}
	cnt, err := s.repo.Count(ctx, pool)
	if err != nil {
		return nil, false, err
	}
	if cnt < TableSize {
		s.logger.Debug("queued", "address", req.Address, "pool", pool)
		return nil, true, nil
	}
	addrs, err := s.repo.PopNRandom(ctx, pool, TableSize)
	if err != nil {
		return nil, false, err
	}
	if len(addrs) < TableSize {
		return nil, true, nil
	}

	room := &Room{
		ID:        uuid.NewString(),
		Pool:      pool,
		Players:   addrs,
		CreatedAt: time.Now(),
	}
	if hasRooms {
		if err := rooms.SaveRoom(ctx, room, s.playerTTL); err != nil {
			s.logger.Warn("save room", "room", room.ID, "err", err)
		}
	}
	s.logger.Info("matched", "room", room.ID, "pool", pool, "players", addrs)

	s.hub.BroadcastToPlayers(addrs, websocket.OutgoingMessage{
		Event: "matched",
		Data: map[string]any{
			"roomId":  room.ID,
			"pool":    room.Pool,
			"players": room.Players,
		},
	})

	if s.OnRoomReady != nil {
		go s.OnRoomReady(room)
	}
	return room, false, nil
}

func (s *Service) Cancel(ctx context.Context, address string) error {
	return s.repo.Remove(ctx, address)
}

// Leave 对局结束后解除玩家与房间的绑定，之后可以重新匹配
func (s *Service) Leave(ctx context.Context, address string) error {
	if rooms, ok := s.repo.(RoomStore); ok {
		return rooms.ClearPlayerRoom(ctx, address)
	}
	return nil
}
