package store

import (
	"context"
	"fmt"
	"sync"

	"SnapPoker/internal/game/gameerr"
	"SnapPoker/internal/game/table"
)

type memStore struct {
	mu     sync.Mutex
	tables map[string]*table.Table
}

// NewMemoryStore 内存版，单进程和测试使用
func NewMemoryStore() Store {
	return &memStore{tables: make(map[string]*table.Table)}
}

func (m *memStore) Load(ctx context.Context, id string) (*table.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, gameerr.ErrMatchNotFound)
	}
	return t.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, t *table.Table, prevVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tables[t.ID]
	switch {
	case !ok && prevVersion != 0:
		return fmt.Errorf("match %s: %w", t.ID, gameerr.ErrMatchNotFound)
	case ok && prevVersion == 0:
		return fmt.Errorf("match %s: %w", t.ID, gameerr.ErrMatchExists)
	case ok && cur.Version != prevVersion:
		return fmt.Errorf("match %s at version %d, expected %d: %w", t.ID, cur.Version, prevVersion, gameerr.ErrVersionConflict)
	}
	m.tables[t.ID] = t.Clone()
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, id)
	return nil
}
