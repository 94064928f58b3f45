package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// NonceStore 一次性 nonce：Issue 后只能 Consume 一次，过期作废
type NonceStore interface {
	Issue(ctx context.Context, nonce string, ttl time.Duration) error
	Consume(ctx context.Context, nonce string) (bool, error)
}

var errNonceExists = errors.New("nonce already issued")

// ---------- Redis ----------

type redisNonceStore struct {
	rdb *redis.Client
}

func NewRedisNonceStore(rdb *redis.Client) NonceStore {
	return &redisNonceStore{rdb: rdb}
}

func nonceKey(n string) string {
	return "sp:nonce:" + n
}

func (r *redisNonceStore) Issue(ctx context.Context, nonce string, ttl time.Duration) error {
	ok, err := r.rdb.SetNX(ctx, nonceKey(nonce), 1, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errNonceExists
	}
	return nil
}

// GETDEL 保证并发登录只有一个能拿到
func (r *redisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	_, err := r.rdb.GetDel(ctx, nonceKey(nonce)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---------- 内存 ----------

type memNonceStore struct {
	mu     sync.Mutex
	clock  quartz.Clock
	expiry map[string]time.Time
}

func NewMemoryNonceStore(clock quartz.Clock) NonceStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &memNonceStore{clock: clock, expiry: make(map[string]time.Time)}
}

func (m *memNonceStore) Issue(ctx context.Context, nonce string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	// 顺便清理过期的
	for n, exp := range m.expiry {
		if !now.Before(exp) {
			delete(m.expiry, n)
		}
	}
	if _, ok := m.expiry[nonce]; ok {
		return errNonceExists
	}
	m.expiry[nonce] = now.Add(ttl)
	return nil
}

func (m *memNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expiry[nonce]
	if !ok {
		return false, nil
	}
	delete(m.expiry, nonce) // 只允许一次
	return m.clock.Now().Before(exp), nil
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GetNonce / POST 同样处理，前端两种都有在用
func (h *Handler) GetNonce(c *gin.Context) {
	nonce, err := generateNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate nonce"})
		return
	}

	// 防止重放
	if err := h.nonces.Issue(c.Request.Context(), nonce, h.nonceTTL); err != nil {
		h.logger.Error("store nonce", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": LoginMessage(nonce)})
}
