package middleware

import (
	"net/http"
	"strings"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"

	"SnapPoker/internal/auth"
)

// JwtAuthMiddleware 校验 JWT 并把钱包地址放进 c.Set("address")
// 浏览器的 websocket 不能带 header，所以也接受 ?token=
// clock 为 nil 时用真实时间
func JwtAuthMiddleware(secret []byte, clock quartz.Clock) gin.HandlerFunc {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return func(c *gin.Context) {
		tokenStr := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		address, err := auth.ParseToken(secret, tokenStr, clock.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("address", address)
		c.Next()
	}
}
