package auth

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/errs"
)

type Handler struct {
	service *Service
	tokens  *TokenIssuer
	logger  *zap.Logger
}

func NewHandler(s *Service, tokens *TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{service: s, tokens: tokens, logger: logger}
}

// RegisterRoutes registers auth and admin user routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)

		me := authGroup.Group("", RequireActor(h.tokens))
		me.GET("/profile", h.Profile)
		me.PUT("/profile", h.UpdateProfile)
	}

	admin := rg.Group("/admin", RequireActor(h.tokens), RequireRole(RoleAdmin))
	{
		admin.GET("/users", h.ListUsers)
		admin.PATCH("/users/:id/status", h.UpdateStatus)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Profile(c *gin.Context) {
	actor, _ := ActorFromContext(c)

	user, err := h.service.Profile(c.Request.Context(), actor.Email)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	actor, _ := ActorFromContext(c)

	var payload struct {
		Bio string `json:"bio"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	user, err := h.service.UpdateBio(c.Request.Context(), actor.Email, payload.Bio)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		errs.BadRequest(c, "invalid id")
		return
	}

	var payload struct {
		Status UserStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	user, err := h.service.UpdateStatus(c.Request.Context(), uint(id), payload.Status)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
