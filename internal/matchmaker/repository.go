package matchmaker

import "context"

// Repo 定义对匹配池的抽象操作
type Repo interface {
	// Enqueue 将地址加入指定池
	Enqueue(ctx context.Context, pool string, address string, ttlSeconds int) error
	// PopNRandom 随机弹出 n 人（原子）；人数不足时返回空
	PopNRandom(ctx context.Context, pool string, n int) ([]string, error)
	// Remove 将玩家从当前池移除（用于取消）
	Remove(ctx context.Context, address string) error
	// Count 返回池内人数
	Count(ctx context.Context, pool string) (int64, error)
}

// RoomStore 可选能力：记录玩家所在对局，防止重复匹配
type RoomStore interface {
	SaveRoom(ctx context.Context, room *Room, ttlSeconds int) error
	GetPlayerRoom(ctx context.Context, address string) (string, error)
	ClearPlayerRoom(ctx context.Context, address string) error
}
