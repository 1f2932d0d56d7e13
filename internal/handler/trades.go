package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"strategyfund/internal/db"
	"strategyfund/internal/repository"
	"strategyfund/internal/trading"
)

type TradeHandler struct {
	Authorizer *trading.Authorizer
	Repo       repository.Repository
}

func (h *TradeHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	group := r.Group("/api/v1/strategies/:id/trading", auth)
	group.POST("/init", h.initState)
	group.GET("/state", h.getState)
	group.PATCH("/params", h.updateParams)
	group.POST("/trades", h.executeTrade)
	group.GET("/trades", h.listTrades)
	group.POST("/trades/:trade_id/outcome", h.updateOutcome)
}

type initTradingRequest struct {
	Authority       string `json:"authority" binding:"required"`
	MaxPositionSize int64  `json:"max_position_size" binding:"required"`
	RiskTier        int    `json:"risk_tier" binding:"required"`
}

func (h *TradeHandler) initState(c *gin.Context) {
	var req initTradingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	state, err := h.Authorizer.InitState(c.Request.Context(), caller(c), c.Param("id"), req.Authority, req.MaxPositionSize, req.RiskTier, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, state, nil)
}

func (h *TradeHandler) getState(c *gin.Context) {
	state, err := h.Repo.GetTradingState(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if state == nil {
		Error(c, http.StatusNotFound, "trading state not found", nil)
		return
	}
	Ok(c, state, nil)
}

type updateTradingRequest struct {
	Paused          *bool  `json:"paused"`
	MaxPositionSize *int64 `json:"max_position_size"`
	RiskTier        *int   `json:"risk_tier"`
}

func (h *TradeHandler) updateParams(c *gin.Context) {
	var req updateTradingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	state, err := h.Authorizer.UpdateParameters(c.Request.Context(), caller(c), c.Param("id"), req.Paused, req.MaxPositionSize, req.RiskTier, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, state, nil)
}

type executeTradeRequest struct {
	AssetID    string `json:"asset_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
	Side       string `json:"side" binding:"required"`
	Confidence int    `json:"confidence" binding:"required"`
}

func (h *TradeHandler) executeTrade(c *gin.Context) {
	var req executeTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	rec, err := h.Authorizer.ExecuteTrade(c.Request.Context(), caller(c), trading.TradeRequest{
		StrategyID: c.Param("id"),
		AssetID:    req.AssetID,
		Amount:     req.Amount,
		Side:       req.Side,
		Confidence: req.Confidence,
	}, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, rec, nil)
}

func (h *TradeHandler) listTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	items, err := h.Repo.ListTradesByStrategy(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

type tradeOutcomeRequest struct {
	Successful    bool  `json:"successful"`
	ProfitLossBps int64 `json:"profit_loss_bps"`
}

func (h *TradeHandler) updateOutcome(c *gin.Context) {
	var req tradeOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	rec, err := h.Authorizer.UpdateTradeOutcome(c.Request.Context(), caller(c), c.Param("id"), c.Param("trade_id"), req.Successful, req.ProfitLossBps, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, rec, nil)
}
