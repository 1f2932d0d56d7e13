package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"strategyfund/internal/registry"
	"strategyfund/internal/repository"
)

type RegistryHandler struct {
	Registry *registry.Service
	Repo     repository.Repository
}

func (h *RegistryHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	group := r.Group("/api/v1/registry", auth)
	group.GET("", h.get)
	group.POST("/init", h.init)
	group.PUT("/fee", h.updateFee)
}

func (h *RegistryHandler) get(c *gin.Context) {
	reg, err := h.Repo.GetRegistry(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if reg == nil {
		Error(c, http.StatusNotFound, "registry not initialized", nil)
		return
	}
	Ok(c, reg, nil)
}

type initRegistryRequest struct {
	ProtocolFeeBps int    `json:"protocol_fee_bps"`
	FeeRecipient   string `json:"fee_recipient" binding:"required"`
}

func (h *RegistryHandler) init(c *gin.Context) {
	var req initRegistryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	reg, err := h.Registry.InitRegistry(c.Request.Context(), caller(c), req.ProtocolFeeBps, req.FeeRecipient)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, reg, nil)
}

type updateFeeRequest struct {
	ProtocolFeeBps int     `json:"protocol_fee_bps"`
	FeeRecipient   *string `json:"fee_recipient"`
}

func (h *RegistryHandler) updateFee(c *gin.Context) {
	var req updateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	reg, err := h.Registry.UpdateProtocolFee(c.Request.Context(), caller(c), req.ProtocolFeeBps, req.FeeRecipient)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, reg, nil)
}
