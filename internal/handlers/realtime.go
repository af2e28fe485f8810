package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/realtime"
	"github.com/charlesng35/campus/pkg/errors"
	"github.com/charlesng35/campus/pkg/response"
)

// RealtimeHandler hands WebSocket upgrades to the STOMP broker. Identity is
// established by the CONNECT frame, not by the HTTP request.
type RealtimeHandler struct {
	broker *realtime.Broker
}

func NewRealtimeHandler(broker *realtime.Broker) *RealtimeHandler {
	return &RealtimeHandler{broker: broker}
}

// GET /ws
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.broker == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	h.broker.Serve(c.Writer, c.Request)
}
