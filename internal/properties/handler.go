package properties

import (
	"net/http"
	"strings"

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

// RegisterRoutes expects rg to already require an authenticated actor.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	props := rg.Group("/properties")
	{
		props.POST("", auth.RequireRole(auth.RoleSeller, auth.RoleAdmin), h.Register)
		props.GET("", h.List)
		props.GET("/:propertyId", h.Get)
		props.POST("/:propertyId/approve", auth.RequireRole(auth.RoleGovernment, auth.RoleAdmin), h.Approve)
		props.POST("/:propertyId/reject", auth.RequireRole(auth.RoleGovernment, auth.RoleAdmin), h.Reject)
	}

	rg.GET("/marketplace", h.Marketplace)
}

func (h *Handler) Register(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	var doc *storage.Upload
	if file, err := c.FormFile("document"); err == nil {
		f, err := file.Open()
		if err != nil {
			errs.BadRequest(c, "unreadable document")
			return
		}
		defer f.Close()
		doc = &storage.Upload{Filename: file.Filename, Content: f}
	}

	p, err := h.service.Register(c.Request.Context(), actor, req, doc)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c *gin.Context) {
	f := Filter{
		OwnerName:  c.Query("owner_name"),
		OwnerEmail: c.Query("owner_email"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status, ok := ParseStatus(strings.TrimSpace(s))
			if !ok {
				errs.BadRequest(c, "invalid status "+s)
				return
			}
			f.Statuses = append(f.Statuses, status)
		}
	}

	out, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("propertyId"))
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) Approve(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	p, err := h.service.Approve(c.Request.Context(), actor, c.Param("propertyId"))
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) Reject(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	p, err := h.service.Reject(c.Request.Context(), actor, c.Param("propertyId"))
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// Marketplace lists approved properties.
func (h *Handler) Marketplace(c *gin.Context) {
	out, err := h.service.ListByStatus(c.Request.Context(), StatusApproved)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, out)
}
