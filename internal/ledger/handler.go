package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/blockchain"
	"land-registry/registry-backend/internal/errs"
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
	officials := auth.RequireRole(auth.RoleGovernment, auth.RoleAdmin)

	chain := rg.Group("/blockchain")
	{
		chain.POST("/register-property", officials, h.RegisterProperty)
		chain.POST("/approve-property", officials, h.ApproveProperty)
		chain.GET("/property/:id", h.Property)
		chain.POST("/verify-ownership", h.VerifyOwnership)
		chain.GET("/stats", h.Stats)
		chain.POST("/validate-address", h.ValidateAddress)
	}
}

func (h *Handler) RegisterProperty(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	out, err := h.service.RegisterProperty(c.Request.Context(), actor, req)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

type approveBody struct {
	PropertyID string `json:"property_id" binding:"required"`
}

func (h *Handler) ApproveProperty(c *gin.Context) {
	actor, _ := auth.ActorFromContext(c)

	var body approveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	res, err := h.service.ApproveProperty(c.Request.Context(), actor, body.PropertyID)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) Property(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		errs.BadRequest(c, "invalid blockchain property id")
		return
	}

	p, err := h.service.Property(c.Request.Context(), id)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

type ownershipBody struct {
	BlockchainPropertyID uint64 `json:"blockchain_property_id" binding:"required"`
	OwnerWalletAddress   string `json:"owner_wallet_address" binding:"required"`
}

func (h *Handler) VerifyOwnership(c *gin.Context) {
	var body ownershipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	ok, err := h.service.VerifyOwnership(c.Request.Context(), body.BlockchainPropertyID, body.OwnerWalletAddress)
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"blockchain_property_id": body.BlockchainPropertyID,
		"owner_wallet_address":   body.OwnerWalletAddress,
		"is_owner":               ok,
	})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		errs.Abort(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ValidateAddress checks the wallet address format without touching the chain.
func (h *Handler) ValidateAddress(c *gin.Context) {
	var body struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		errs.BadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":  body.Address,
		"is_valid": blockchain.IsValidAddress(body.Address),
	})
}
