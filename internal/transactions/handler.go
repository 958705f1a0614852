package transactions

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/pkg/storage"
)

type Handler struct {
	engine *Engine
	logger *zap.Logger
}

func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes expects rg to already require an authenticated actor.
// Role checks for individual operations happen in the engine.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	tx := rg.Group("/transactions")
	{
		tx.POST("", h.Submit)
		tx.GET("", h.List)
		tx.GET("/:id", h.Get)
		tx.GET("/:id/history", h.History)
		tx.POST("/:id/accept", h.transition(OpAccept))
		tx.POST("/:id/seller-reject", h.transition(OpSellerReject))
		tx.POST("/:id/gov-reject", h.transition(OpGovReject))
		tx.POST("/:id/mark-payment-received", h.transition(OpMarkPaymentReceived))
		tx.POST("/:id/gov-approve", h.transition(OpGovApprove))
		tx.POST("/:id/payment-proof", h.UploadPaymentProof)
		tx.POST("/:id/finalize", h.Finalize)
	}
}

func (h *Handler) Submit(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	t, err := h.engine.SubmitRequest(c.Request.Context(), actor, req)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

// List returns transactions for a role. Buyers and sellers always see their
// own; government and admins may ask for any role and identity.
func (h *Handler) List(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	role := actor.Role
	identity := actor.Email
	if actor.Role == auth.RoleGovernment || actor.Role == auth.RoleAdmin {
		if raw := c.Query("role"); raw != "" {
			r, ok := auth.ParseRole(raw)
			if !ok {
				errs.BadRequest(c, "invalid role "+raw)
				return
			}
			role = r
		}
		identity = c.Query("identity")
	}

	var statuses []Status
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st, ok := ParseStatus(strings.TrimSpace(s))
			if !ok {
				errs.BadRequest(c, "invalid status "+s)
				return
			}
			statuses = append(statuses, st)
		}
	}

	list, err := h.engine.ListByRole(c.Request.Context(), role, identity, statuses...)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}
	if list == nil {
		list = []Transaction{}
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": list,
		"count":        len(list),
	})
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	t, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction":        t,
		"allowed_operations": AllowedOperations(t.Status),
	})
}

func (h *Handler) History(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	events, err := h.engine.History(c.Request.Context(), id)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (h *Handler) transition(op Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := auth.ActorFromContext(c)
		id, ok := parseID(c)
		if !ok {
			return
		}

		var body reasonBody
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				errs.BadRequest(c, err.Error())
				return
			}
		}

		t, err := h.engine.Transition(c.Request.Context(), id, op, actor, Payload{Reason: body.Reason})
		if err != nil {
			errs.Abort(c, h.logger, err)
			return
		}

		c.JSON(http.StatusOK, t)
	}
}

func (h *Handler) UploadPaymentProof(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("paymentProof")
	if err != nil {
		errs.BadRequest(c, "paymentProof file is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		errs.BadRequest(c, "unreadable payment proof")
		return
	}
	defer f.Close()

	t, err := h.engine.Transition(c.Request.Context(), id, OpUploadPaymentProof, actor, Payload{
		PaymentProof: &storage.Upload{Filename: file.Filename, Content: f},
	})
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

func (h *Handler) Finalize(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req FinalizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errs.BadRequest(c, err.Error())
			return
		}
	}

	res, err := h.engine.FinalizeOnChain(c.Request.Context(), id, actor, req)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		errs.BadRequest(c, "invalid transaction id")
		return 0, false
	}
	return uint(id), true
}
