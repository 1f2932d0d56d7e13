package handler

import (
	"github.com/gin-gonic/gin"

	"strategyfund/internal/notify"
)

// WSHandler exposes the notification hub as a websocket endpoint.
type WSHandler struct {
	Hub *notify.Hub
}

func (h *WSHandler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	r.GET("/ws/notifications", auth, func(c *gin.Context) {
		h.Hub.Serve(c.Writer, c.Request)
	})
}
