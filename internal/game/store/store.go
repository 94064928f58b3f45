// Package store persists match records. Writers pass the version they loaded; a save against a
// record that moved on in the meantime fails with gameerr.ErrVersionConflict.
package store

import (
	"context"

	"SnapPoker/internal/game/table"
)

type Store interface {
	// Load 返回记录副本；不存在时返回 gameerr.ErrMatchNotFound
	Load(ctx context.Context, id string) (*table.Table, error)
	// Save 仅当已存版本等于 prevVersion 时写入；prevVersion 为 0 表示新建
	Save(ctx context.Context, t *table.Table, prevVersion int64) error
	Delete(ctx context.Context, id string) error
}
