package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"strategyfund/internal/db"
	"strategyfund/internal/models"
	"strategyfund/internal/registry"
	"strategyfund/internal/repository"
)

type StrategyHandler struct {
	Registry *registry.Service
	Repo     repository.Repository
}

func (h *StrategyHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	group := r.Group("/api/v1/strategies", auth)
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.PATCH("/:id", h.update)
	group.POST("/:id/verify", h.verify)
	group.POST("/:id/status", h.setStatus)
	group.POST("/:id/transfer", h.transferOwnership)
}

type createStrategyRequest struct {
	Name              string                   `json:"name" binding:"required"`
	Description       string                   `json:"description"`
	RiskLevel         int                      `json:"risk_level"`
	TimeHorizon       int                      `json:"time_horizon"`
	AIModels          int64                    `json:"ai_models"`
	TokenSupport      int                      `json:"token_support"`
	ManagementFeeBps  int                      `json:"management_fee_bps"`
	PerformanceFeeBps int                      `json:"performance_fee_bps"`
	MinInvestment     int64                    `json:"min_investment"`
	LockupDays        int                      `json:"lockup_days"`
	EstimatedAPYBps   int                      `json:"estimated_apy_bps"`
	TokenAllocations  []models.TokenAllocation `json:"token_allocations"`
	ProtocolConfig    *models.ProtocolConfig   `json:"protocol_config"`
	Tags              []string                 `json:"tags"`
}

func (h *StrategyHandler) create(c *gin.Context) {
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	strat, err := h.Registry.CreateStrategy(c.Request.Context(), caller(c), registry.CreateStrategyParams{
		Name:              req.Name,
		Description:       req.Description,
		RiskLevel:         req.RiskLevel,
		TimeHorizon:       req.TimeHorizon,
		AIModels:          req.AIModels,
		TokenSupport:      req.TokenSupport,
		ManagementFeeBps:  req.ManagementFeeBps,
		PerformanceFeeBps: req.PerformanceFeeBps,
		MinInvestment:     req.MinInvestment,
		LockupDays:        req.LockupDays,
		EstimatedAPYBps:   req.EstimatedAPYBps,
		TokenAllocations:  req.TokenAllocations,
		ProtocolConfig:    req.ProtocolConfig,
		Tags:              req.Tags,
	}, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, strat, nil)
}

func (h *StrategyHandler) list(c *gin.Context) {
	params := repository.ListStrategiesParams{}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		params.Status = &status
	}
	if creator := strings.TrimSpace(c.Query("creator")); creator != "" {
		params.Creator = &creator
	}
	if raw := strings.TrimSpace(c.Query("verified")); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, "invalid verified filter", nil)
			return
		}
		params.Verified = &verified
	}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Repo.ListStrategies(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	total, err := h.Repo.CountStrategies(c.Request.Context(), params)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, map[string]any{
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

func (h *StrategyHandler) get(c *gin.Context) {
	strat, err := h.Repo.GetStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if strat == nil {
		Error(c, http.StatusNotFound, "strategy not found", nil)
		return
	}
	Ok(c, strat, nil)
}

type updateStrategyRequest struct {
	Name              *string                  `json:"name"`
	Description       *string                  `json:"description"`
	RiskLevel         *int                     `json:"risk_level"`
	TimeHorizon       *int                     `json:"time_horizon"`
	AIModels          *int64                   `json:"ai_models"`
	TokenSupport      *int                     `json:"token_support"`
	ManagementFeeBps  *int                     `json:"management_fee_bps"`
	PerformanceFeeBps *int                     `json:"performance_fee_bps"`
	MinInvestment     *int64                   `json:"min_investment"`
	LockupDays        *int                     `json:"lockup_days"`
	EstimatedAPYBps   *int                     `json:"estimated_apy_bps"`
	TokenAllocations  []models.TokenAllocation `json:"token_allocations"`
	ProtocolConfig    *models.ProtocolConfig   `json:"protocol_config"`
	Tags              []string                 `json:"tags"`
}

func (h *StrategyHandler) update(c *gin.Context) {
	var req updateStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	strat, err := h.Registry.UpdateStrategy(c.Request.Context(), caller(c), c.Param("id"), registry.StrategyPatch{
		Name:              req.Name,
		Description:       req.Description,
		RiskLevel:         req.RiskLevel,
		TimeHorizon:       req.TimeHorizon,
		AIModels:          req.AIModels,
		TokenSupport:      req.TokenSupport,
		ManagementFeeBps:  req.ManagementFeeBps,
		PerformanceFeeBps: req.PerformanceFeeBps,
		MinInvestment:     req.MinInvestment,
		LockupDays:        req.LockupDays,
		EstimatedAPYBps:   req.EstimatedAPYBps,
		TokenAllocations:  req.TokenAllocations,
		ProtocolConfig:    req.ProtocolConfig,
		Tags:              req.Tags,
	}, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, strat, nil)
}

type verifyRequest struct {
	Verified bool `json:"verified"`
}

func (h *StrategyHandler) verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	strat, err := h.Registry.VerifyStrategy(c.Request.Context(), caller(c), c.Param("id"), req.Verified, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, strat, nil)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *StrategyHandler) setStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	strat, err := h.Registry.SetStatus(c.Request.Context(), caller(c), c.Param("id"), req.Status, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, strat, nil)
}

type transferOwnershipRequest struct {
	NewOwner string `json:"new_owner" binding:"required"`
}

func (h *StrategyHandler) transferOwnership(c *gin.Context) {
	var req transferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	strat, err := h.Registry.TransferOwnership(c.Request.Context(), caller(c), c.Param("id"), req.NewOwner, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, strat, nil)
}
