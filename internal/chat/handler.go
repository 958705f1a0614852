package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/pkg/storage"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/messages", h.List)
	r.POST("/messages", h.Send)
	r.POST("/messages/audio", h.SendAudio)
}

func (h *Handler) List(c *gin.Context) {
	msgs, err := h.service.List(c.Request.Context(), c.Query("property_id"))
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}
	if msgs == nil {
		msgs = []Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) Send(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	m, err := h.service.Send(c.Request.Context(), req.PropertyID, actor.Email, req.Message)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) SendAudio(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	file, err := c.FormFile("audio")
	if err != nil {
		errs.BadRequest(c, "audio file is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		errs.BadRequest(c, "unreadable audio file")
		return
	}
	defer f.Close()

	m, err := h.service.SendAudio(c.Request.Context(), c.PostForm("property_id"), actor.Email,
		&storage.Upload{Filename: file.Filename, Content: f})
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}
