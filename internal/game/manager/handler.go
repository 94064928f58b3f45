package manager

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"SnapPoker/internal/game/engine"
	"SnapPoker/internal/game/gameerr"
	"SnapPoker/internal/game/table"
)

type Handler struct {
	mgr *GameManager
}

func NewHandler(mgr *GameManager) *Handler {
	return &Handler{mgr: mgr}
}

// 所有路由都需要 JWT middleware 注入 address
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/lobby", h.CreateLobby)
	r.POST("/lobby/:code/join", h.JoinLobby)
	r.GET("/game/:id", h.View)
	r.POST("/game/:id/intent", h.Intent)
	r.POST("/game/:id/advance", h.Advance)
}

type IntentRequest struct {
	Intent   string `json:"intent" binding:"required"`
	Nickname string `json:"nickname"`
	Ready    bool   `json:"ready"`
}

// statusOf 校验错误 400/409，结构错误 404/409，其他 500
func statusOf(err error) int {
	switch gameerr.KindOf(err) {
	case gameerr.Validation:
		for _, conflict := range []error{
			gameerr.ErrNotYourTurn, gameerr.ErrLobbyFull, gameerr.ErrMatchStarted,
			gameerr.ErrMatchOver, gameerr.ErrRevealSettled,
		} {
			if errors.Is(err, conflict) {
				return http.StatusConflict
			}
		}
		return http.StatusBadRequest
	case gameerr.Structural:
		if errors.Is(err, gameerr.ErrMatchNotFound) {
			return http.StatusNotFound
		}
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error(), "code": gameerr.CodeOf(err)})
}

func (h *Handler) respond(c *gin.Context, status int, t *table.Table) {
	c.JSON(status, engine.ViewFor(t, c.GetString("address"), h.mgr.Clock().Now()))
}

// POST /lobby
func (h *Handler) CreateLobby(c *gin.Context) {
	t, err := h.mgr.CreateLobby(c.Request.Context(), c.GetString("address"))
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, http.StatusCreated, t)
}

// POST /lobby/:code/join
func (h *Handler) JoinLobby(c *gin.Context) {
	t, err := h.mgr.JoinLobby(c.Request.Context(), c.Param("code"), c.GetString("address"))
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, t)
}

// GET /game/:id
func (h *Handler) View(c *gin.Context) {
	v, err := h.mgr.View(c.Request.Context(), c.Param("id"), c.GetString("address"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// POST /game/:id/intent  body: {intent, nickname?, ready?}
func (h *Handler) Intent(c *gin.Context) {
	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.mgr.SubmitIntent(c.Request.Context(), c.Param("id"), engine.Action{
		Player:   c.GetString("address"),
		Intent:   engine.Intent(req.Intent),
		Nickname: req.Nickname,
		Ready:    req.Ready,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, t)
}

// POST /game/:id/advance
func (h *Handler) Advance(c *gin.Context) {
	// 只有桌上的玩家可以触发
	if _, err := h.mgr.View(c.Request.Context(), c.Param("id"), c.GetString("address")); err != nil {
		fail(c, err)
		return
	}
	t, err := h.mgr.AdvanceIfDeadlinePassed(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	h.respond(c, http.StatusOK, t)
}
