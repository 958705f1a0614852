package notifications

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
)

// UpgradeFunc turns a request into a push connection for a user.
type UpgradeFunc func(w http.ResponseWriter, r *http.Request, userEmail string) error

type Handler struct {
	service *Service
	upgrade UpgradeFunc
	logger  *zap.Logger
}

// NewHandler wires the notification routes. upgrade may be nil when push
// delivery is disabled.
func NewHandler(service *Service, upgrade UpgradeFunc, logger *zap.Logger) *Handler {
	return &Handler{service: service, upgrade: upgrade, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.POST("/notifications/:id/read", h.MarkRead)
	if h.upgrade != nil {
		rg.GET("/ws", h.Connect)
	}
}

func (h *Handler) List(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	out, err := h.service.List(c.Request.Context(), actor.Email, c.Query("unread") == "true")
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handler) MarkRead(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		errs.BadRequest(c, "invalid id")
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), uint(id), actor.Email); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, errs.Response{Error: err.Error(), Code: errs.KindNotFound})
			return
		}
		errs.Abort(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Connect(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	if err := h.upgrade(c.Writer, c.Request, actor.Email); err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.String("user", actor.Email), zap.Error(err))
	}
}
