package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/notify"
)

type NotificationHandler struct {
	bus       *notify.Bus
	keepalive time.Duration
}

func NewNotificationHandler(bus *notify.Bus) *NotificationHandler {
	return &NotificationHandler{bus: bus, keepalive: 25 * time.Second}
}

// Stream sends the organization's notifications as server-sent events until the
// client disconnects.
func (h *NotificationHandler) Stream(c *gin.Context) {
	ch := h.bus.Subscribe(c.Request.Context(), middleware.OrgID(c))
	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
