package reports

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/transactions"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes expects r to already require an authenticated actor.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/admin/stats", auth.RequireRole(auth.RoleAdmin, auth.RoleGovernment), h.Stats)

	exports := r.Group("/reports", auth.RequireRole(auth.RoleAdmin, auth.RoleGovernment))
	{
		exports.GET("/transactions.xlsx", h.export(FormatXLSX))
		exports.GET("/transactions.csv", h.export(FormatCSV))
	}

	r.GET("/transactions/:id/certificate", h.Certificate)
}

func (h *Handler) Stats(c *gin.Context) {
	st, err := h.service.Stats(c.Request.Context())
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) export(format Format) gin.HandlerFunc {
	return func(c *gin.Context) {
		var statuses []transactions.Status
		if raw := c.Query("status"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				st, ok := transactions.ParseStatus(strings.TrimSpace(s))
				if !ok {
					errs.BadRequest(c, "invalid status "+s)
					return
				}
				statuses = append(statuses, st)
			}
		}

		var buf bytes.Buffer
		if _, err := h.service.ExportTransactions(c.Request.Context(), &buf, format, statuses...); err != nil {
			errs.Abort(c, h.logger, err)
			return
		}

		name := fmt.Sprintf("transactions-%s.%s", time.Now().UTC().Format("20060102"), format)
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
	}
}

func (h *Handler) Certificate(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		errs.BadRequest(c, "invalid transaction id")
		return
	}

	var buf bytes.Buffer
	if err := h.service.Certificate(c.Request.Context(), actor, uint(id), &buf); err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="certificate-%d.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
