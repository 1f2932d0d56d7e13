package handler

import (
	"github.com/gin-gonic/gin"

	"strategyfund/internal/db"
	"strategyfund/internal/fees"
)

type FeeHandler struct {
	Engine *fees.Engine
}

func (h *FeeHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	group := r.Group("/api/v1/strategies/:id/fees", auth)
	group.POST("/management/:subscriber", h.collectManagement)
	group.POST("/performance/:subscriber", h.collectPerformance)
	group.POST("/sweep", h.sweep)
}

func (h *FeeHandler) collectManagement(c *gin.Context) {
	fee, err := h.Engine.CollectManagementFee(c.Request.Context(), c.Param("id"), c.Param("subscriber"), db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, map[string]any{"fee": fee}, nil)
}

func (h *FeeHandler) collectPerformance(c *gin.Context) {
	fee, err := h.Engine.CollectPerformanceFee(c.Request.Context(), c.Param("id"), c.Param("subscriber"), db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, map[string]any{"fee": fee}, nil)
}

func (h *FeeHandler) sweep(c *gin.Context) {
	total, err := h.Engine.SweepStrategy(c.Request.Context(), c.Param("id"), db.NowUTC())
	if err != nil {
		fail(c, err)
		return
	}
	Ok(c, map[string]any{"total_collected": total}, nil)
}
