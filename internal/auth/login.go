package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"SnapPoker/internal/utils"
)

const (
	loginPrefix     = "Sign this message to authenticate with Snap Poker. Nonce: "
	DefaultNonceTTL = 5 * time.Minute
	DefaultTokenTTL = 24 * time.Hour
)

var (
	ErrBadSignature = errors.New("malformed signature")
	ErrInvalidToken = errors.New("invalid token")
)

type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
}

type Handler struct {
	nonces   NonceStore
	secret   []byte
	nonceTTL time.Duration
	tokenTTL time.Duration
	clock    quartz.Clock
	logger   *log.Logger
}

type Option func(*Handler)

func WithClock(c quartz.Clock) Option { return func(h *Handler) { h.clock = c } }
func WithTokenTTL(d time.Duration) Option { return func(h *Handler) { h.tokenTTL = d } }
func WithNonceTTL(d time.Duration) Option { return func(h *Handler) { h.nonceTTL = d } }

// 工厂方法：创建 handler
func NewHandler(nonces NonceStore, secret []byte, opts ...Option) *Handler {
	h := &Handler{
		nonces:   nonces,
		secret:   secret,
		nonceTTL: DefaultNonceTTL,
		tokenTTL: DefaultTokenTTL,
		clock:    quartz.NewReal(),
		logger:   utils.Named("auth"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/auth/nonce", h.GetNonce)
	r.POST("/auth/nonce", h.GetNonce)
	r.POST("/auth/login", h.Login)
}

// LoginMessage 钱包需要签名的原文
func LoginMessage(nonce string) string {
	return loginPrefix + nonce
}

// RecoverAddress 按 MetaMask personal_sign 的格式恢复签名者地址
func RecoverAddress(msg, signature string) (string, error) {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	hash := crypto.Keccak256Hash([]byte(prefixed))

	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sigBytes) != crypto.SignatureLength {
		return "", ErrBadSignature
	}
	// 修正 V 值
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}
	pubKey, err := crypto.SigToPub(hash.Bytes(), sigBytes)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

// IssueToken HS256，sub = 钱包地址
func IssueToken(secret []byte, address string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": address,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken 校验签名与过期时间，返回地址
func ParseToken(secret []byte, tokenStr string, now time.Time) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	// 检查 nonce 是否有效
	ok, err := h.nonces.Consume(c.Request.Context(), req.Nonce)
	if err != nil {
		h.logger.Error("consume nonce", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce store unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nonce"})
		return
	}

	recovered, err := RecoverAddress(LoginMessage(req.Nonce), req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verify failed"})
		return
	}
	if !strings.EqualFold(recovered, req.Address) {
		h.logger.Warn("signature mismatch", "claimed", req.Address, "recovered", recovered)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
		return
	}

	// 统一用 checksum 地址，避免同一钱包大小写不同被当成两个玩家
	jwtStr, err := IssueToken(h.secret, recovered, h.clock.Now(), h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}
	h.logger.Info("login", "address", recovered)

	c.JSON(http.StatusOK, gin.H{"jwt": jwtStr, "address": recovered})
}
