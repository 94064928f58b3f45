package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 来源由 CORS 和 JWT 把关
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS GET /ws，address 由 JWT middleware 注入
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.GetString("address")
		if addr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Warn("upgrade failed", "address", addr, "err", err)
			return
		}

		client := newClient(hub, addr, conn)
		select {
		case hub.register <- client:
			client.serve()
		case <-hub.quit:
			_ = conn.Close()
		}
	}
}
