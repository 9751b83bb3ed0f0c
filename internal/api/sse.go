package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"propertylens/server/internal/models"
)

const heartbeatInterval = 25 * time.Second

// StreamState pushes view snapshots to the client as server-sent events.
// The first event is always the current state, so a reconnecting client
// never renders from nothing.
func (h *Handler) StreamState(c *gin.Context) {
	updates, cancel, err := h.controller.Subscribe()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "State stream is unavailable"})
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	if err := writeStateEvent(c.Writer, h.controller.Snapshot()); err != nil {
		return
	}
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-clientGone:
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := writeStateEvent(c.Writer, state); err != nil {
				return
			}
			c.Writer.Flush()
		case <-heartbeat.C:
			// Comment lines keep idle proxies from closing the stream.
			if _, err := fmt.Fprint(c.Writer, ": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func writeStateEvent(w io.Writer, state *models.ViewState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: state\ndata: %s\n\n", payload)
	return err
}
