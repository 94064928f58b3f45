package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"SnapPoker/internal/game/gameerr"
	"SnapPoker/internal/game/table"
)

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore 每场对局一个 JSON 值，写入时刷新 TTL；ttl 为 0 表示不过期
func NewRedisStore(rdb *redis.Client, ttl time.Duration) Store {
	return &redisStore{rdb: rdb, ttl: ttl}
}

// key 约定: sp:match:{id} -> JSON(table.Table)
func matchKey(id string) string {
	return fmt.Sprintf("sp:match:%s", id)
}

func (r *redisStore) Load(ctx context.Context, id string) (*table.Table, error) {
	return load(ctx, r.rdb, id)
}

func load(ctx context.Context, c redis.Cmdable, id string) (*table.Table, error) {
	raw, err := c.Get(ctx, matchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("match %s: %w", id, gameerr.ErrMatchNotFound)
	}
	if err != nil {
		return nil, err
	}
	var t table.Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	return &t, nil
}

// Save 用 WATCH + MULTI 做比较并交换，其他写者抢先提交时返回 ErrVersionConflict
func (r *redisStore) Save(ctx context.Context, t *table.Table, prevVersion int64) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode match %s: %w", t.ID, err)
	}
	key := matchKey(t.ID)

	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := load(ctx, tx, t.ID)
		switch {
		case errors.Is(err, gameerr.ErrMatchNotFound):
			if prevVersion != 0 {
				return err
			}
		case err != nil:
			return err
		case prevVersion == 0:
			return fmt.Errorf("match %s: %w", t.ID, gameerr.ErrMatchExists)
		case cur.Version != prevVersion:
			return fmt.Errorf("match %s at version %d, expected %d: %w", t.ID, cur.Version, prevVersion, gameerr.ErrVersionConflict)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("match %s: %w", t.ID, gameerr.ErrVersionConflict)
	}
	return err
}

func (r *redisStore) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, matchKey(id)).Err()
}
