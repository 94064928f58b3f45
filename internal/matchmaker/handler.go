package matchmaker

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// address 由 JWT middleware 注入
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/match/join", h.Join)
	r.POST("/match/cancel", h.Cancel)
	r.POST("/match/leave", h.Leave)
}

// POST /match/join  body: {pool}
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	req.Address = c.GetString("address")

	room, queued, err := h.svc.Join(c.Request.Context(), req)
	switch {
	case errors.Is(err, ErrMissingAddress):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrAlreadyInRoom):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if queued {
		pool := req.Pool
		if pool == "" {
			pool = DefaultPool
		}
		c.JSON(http.StatusOK, JoinResponse{Queued: true, Pool: pool})
		return
	}
	c.JSON(http.StatusOK, JoinResponse{Queued: false, Pool: room.Pool, RoomID: room.ID, Players: room.Players})
}

// POST /match/cancel
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.GetString("address")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /match/leave
func (h *Handler) Leave(c *gin.Context) {
	if err := h.svc.Leave(c.Request.Context(), c.GetString("address")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
