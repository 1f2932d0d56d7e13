package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"strategyfund/internal/alerts"
	"strategyfund/internal/db"
)

type AlertHandler struct {
	Alerts *alerts.Service
}

func (h *AlertHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	group := r.Group("/api/v1/alerts", auth)
	group.POST("", h.create)
	group.GET("", h.list)
	group.DELETE("/:id", h.delete)
	group.POST("/:id/trigger", h.trigger)
}

type triggerAlertRequest struct {
	User  string `json:"user" binding:"required"`
	Price int64  `json:"price" binding:"required"`
}

func (h *AlertHandler) trigger(c *gin.Context) {
	var req triggerAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	alert, err := h.Alerts.Trigger(c.Request.Context(), caller(c), req.User, c.Param("id"), req.Price, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, alert, nil)
}

type createAlertRequest struct {
	Asset     string `json:"asset" binding:"required"`
	Direction string `json:"direction" binding:"required"`
	Threshold int64  `json:"threshold" binding:"required"`
}

func (h *AlertHandler) create(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	alert, err := h.Alerts.Create(c.Request.Context(), caller(c), req.Asset, req.Direction, req.Threshold, db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, alert, nil)
}

func (h *AlertHandler) list(c *gin.Context) {
	items, err := h.Alerts.List(c.Request.Context(), caller(c))
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

func (h *AlertHandler) delete(c *gin.Context) {
	if err := h.Alerts.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	Ok(c, nil, nil)
}
