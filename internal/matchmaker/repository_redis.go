package matchmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

// key 约定：
//
//	set: sp:queue:{pool}          -> Set(address,...)
//	kv : sp:player:{address}      -> pool（取消时定位池）
//	kv : sp:room:{id}             -> JSON(Room)
//	kv : sp:playerRoom:{address}  -> roomID
func poolKey(pool string) string {
	return fmt.Sprintf("sp:queue:%s", pool)
}
func playerKey(addr string) string {
	return fmt.Sprintf("sp:player:%s", addr)
}
func roomKey(id string) string {
	return fmt.Sprintf("sp:room:%s", id)
}
func playerRoomKey(addr string) string {
	return fmt.Sprintf("sp:playerRoom:%s", addr)
}

func (r *redisRepo) Enqueue(ctx context.Context, pool string, address string, ttlSeconds int) error {
	p := r.rdb.Pipeline()
	p.SAdd(ctx, poolKey(pool), address)
	p.Set(ctx, playerKey(address), pool, time.Duration(ttlSeconds)*time.Second)
	_, err := p.Exec(ctx)
	return err
}

// PopNRandom 只有人数足够时才弹出；SPOP COUNT 本身是原子的
func (r *redisRepo) PopNRandom(ctx context.Context, pool string, n int) ([]string, error) {
	key := poolKey(pool)
	res, err := r.rdb.SPopN(ctx, key, int64(n)).Result()
	if err != nil {
		return nil, err
	}
	if len(res) < n {
		// 并发竞争导致人数不足：放回去
		if len(res) > 0 {
			members := make([]any, len(res))
			for i, a := range res {
				members[i] = a
			}
			_ = r.rdb.SAdd(ctx, key, members...).Err()
		}
		return []string{}, nil
	}
	p := r.rdb.Pipeline()
	for _, addr := range res {
		p.Del(ctx, playerKey(addr))
	}
	_, _ = p.Exec(ctx)
	return res, nil
}

// 删除 playerKey、从集合中移除成员；若集合空则删除集合
// KEYS[1] = playerKey, KEYS[2] = poolKey, ARGV[1] = address
var removeScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if redis.call("SCARD", KEYS[2]) == 0 then
	redis.call("DEL", KEYS[2])
end
return 1
`)

func (r *redisRepo) Remove(ctx context.Context, address string) error {
	pool, err := r.rdb.Get(ctx, playerKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return removeScript.Run(ctx, r.rdb, []string{playerKey(address), poolKey(pool)}, address).Err()
}

func (r *redisRepo) Count(ctx context.Context, pool string) (int64, error) {
	return r.rdb.SCard(ctx, poolKey(pool)).Result()
}

func (r *redisRepo) SaveRoom(ctx context.Context, room *Room, ttlSeconds int) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	p := r.rdb.Pipeline()
	p.Set(ctx, roomKey(room.ID), data, ttl)
	for _, addr := range room.Players {
		p.Set(ctx, playerRoomKey(addr), room.ID, ttl)
	}
	_, err = p.Exec(ctx)
	return err
}

func (r *redisRepo) GetPlayerRoom(ctx context.Context, address string) (string, error) {
	val, err := r.rdb.Get(ctx, playerRoomKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *redisRepo) ClearPlayerRoom(ctx context.Context, address string) error {
	return r.rdb.Del(ctx, playerRoomKey(address)).Err()
}
