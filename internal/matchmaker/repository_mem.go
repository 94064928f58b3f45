package matchmaker

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// memRepo 单进程用；排队记录和 Redis 版一样按 TTL 过期
type memRepo struct {
	mu    sync.Mutex
	clock quartz.Clock
	queue map[string]map[string]time.Time // pool -> address -> 过期时间
	inQ   map[string]string               // address -> pool
	rooms map[string]string               // address -> roomID
}

func NewMemoryRepo() Repo {
	return NewMemoryRepoWithClock(quartz.NewReal())
}

func NewMemoryRepoWithClock(clock quartz.Clock) Repo {
	return &memRepo{
		clock: clock,
		queue: make(map[string]map[string]time.Time),
		inQ:   make(map[string]string),
		rooms: make(map[string]string),
	}
}

// 调用方持锁
func (m *memRepo) live(pool string) map[string]time.Time {
	q := m.queue[pool]
	now := m.clock.Now()
	for a, exp := range q {
		if !now.Before(exp) {
			delete(q, a)
			delete(m.inQ, a)
		}
	}
	if len(q) == 0 {
		delete(m.queue, pool)
		return nil
	}
	return q
}

func (m *memRepo) Enqueue(ctx context.Context, pool string, address string, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// 换池子排队时先从旧池移除
	if old, ok := m.inQ[address]; ok && old != pool {
		delete(m.queue[old], address)
	}
	q, ok := m.queue[pool]
	if !ok {
		q = make(map[string]time.Time)
		m.queue[pool] = q
	}
	q[address] = m.clock.Now().Add(time.Duration(ttlSeconds) * time.Second)
	m.inQ[address] = pool
	return nil
}

func (m *memRepo) PopNRandom(ctx context.Context, pool string, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.live(pool)
	if len(q) < n {
		return []string{}, nil
	}
	waiting := make([]string, 0, len(q))
	for a := range q {
		waiting = append(waiting, a)
	}
	chosen := make([]string, 0, n)
	for _, i := range rand.Perm(len(waiting))[:n] {
		a := waiting[i]
		chosen = append(chosen, a)
		delete(q, a)
		delete(m.inQ, a)
	}
	if len(q) == 0 {
		delete(m.queue, pool)
	}
	return chosen, nil
}

func (m *memRepo) Remove(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool, ok := m.inQ[address]
	if !ok {
		return nil
	}
	delete(m.inQ, address)
	delete(m.queue[pool], address)
	if len(m.queue[pool]) == 0 {
		delete(m.queue, pool)
	}
	return nil
}

func (m *memRepo) Count(ctx context.Context, pool string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.live(pool))), nil
}

// 内存版的房间索引不过期，离开时由 Leave 清理
func (m *memRepo) SaveRoom(ctx context.Context, room *Room, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range room.Players {
		m.rooms[a] = room.ID
	}
	return nil
}

func (m *memRepo) GetPlayerRoom(ctx context.Context, address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[address], nil
}

func (m *memRepo) ClearPlayerRoom(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, address)
	return nil
}
