package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.Get)
	r.POST("/settings", h.Update)
}

func (h *Handler) Get(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	st, err := h.service.Get(c.Request.Context(), actor.Email)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Update(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	st, err := h.service.Save(c.Request.Context(), actor.Email, req)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
