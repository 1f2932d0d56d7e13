package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"strategyfund/internal/db"
	"strategyfund/internal/ledger"
	"strategyfund/internal/repository"
)

type SubscriptionHandler struct {
	Ledger *ledger.Service
	Repo   repository.Repository
}

func (h *SubscriptionHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	group := r.Group("/api/v1", auth)
	group.POST("/strategies/:id/subscribe", h.subscribe)
	group.POST("/strategies/:id/unsubscribe", h.unsubscribe)
	group.POST("/strategies/:id/subscriptions/:subscriber/value", h.updateValue)
	group.GET("/strategies/:id/subscriptions", h.listByStrategy)
	group.GET("/subscriptions", h.listMine)
}

type subscribeRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *SubscriptionHandler) subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	sub, err := h.Ledger.Subscribe(c.Request.Context(), caller(c), c.Param("id"), req.Amount, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, sub, nil)
}

func (h *SubscriptionHandler) unsubscribe(c *gin.Context) {
	payout, err := h.Ledger.Unsubscribe(c.Request.Context(), caller(c), c.Param("id"), db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, map[string]any{"payout": payout}, nil)
}

type updateValueRequest struct {
	NewValue   int64 `json:"new_value"`
	ReturnsBps int64 `json:"returns_bps"`
}

func (h *SubscriptionHandler) updateValue(c *gin.Context) {
	var req updateValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	sub, err := h.Ledger.UpdateValue(c.Request.Context(), caller(c), c.Param("id"), c.Param("subscriber"), req.NewValue, req.ReturnsBps, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, sub, nil)
}

func (h *SubscriptionHandler) listByStrategy(c *gin.Context) {
	items, err := h.Repo.ListSubscriptionsByStrategy(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

func (h *SubscriptionHandler) listMine(c *gin.Context) {
	items, err := h.Repo.ListSubscriptionsBySubscriber(c.Request.Context(), caller(c))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}
