package handlers

import (
	"io"
	"net/http"
	"time"

	"food-distribution-api/middleware"

	"github.com/gin-gonic/gin"
)

// StreamEvents is the live notification stream (Server-Sent Events).
// Each committed transition the caller may see arrives as an "order"
// event carrying the caller's projection of the order. A "ready" event is
// sent once the subscription is registered, and "heartbeat" events keep
// idle connections open. Delivery is best effort: after a reconnect,
// clients re-read the orders they care about.
func (h *Handler) StreamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	actor := middleware.GetActor(c)

	conn, err := h.engine.Subscribe(ctx, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer conn.Close()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"connection_id": conn.ID})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				return false
			}
			c.SSEvent("order", ev)
			conn.Touch()
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"at": time.Now().UTC(), "dropped": conn.Dropped()})
			conn.Touch()
			return true
		case <-ctx.Done():
			return false
		}
	})
	h.log.Debug("event stream closed", "connection", conn.ID, "user_id", actor.ID, "dropped", conn.Dropped())
}
