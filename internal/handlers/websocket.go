package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const progressInterval = 2 * time.Second

// ProgressWebSocket streams live run progress snapshots. The client
// receives a snapshot every few seconds while a run is active; when no
// run is active a single {"active": false} frame is sent and the
// connection stays open for the next run.
func (h *Handlers) ProgressWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse("websocket_failed", "Failed to establish WebSocket connection"))
		return
	}
	defer conn.Close()

	h.logger.Info("websocket connected for run progress")

	// Reads are discarded; their only purpose is detecting disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		progress, err := h.orchestrator.LiveProgress(ctx)
		if err != nil {
			h.logger.Error("failed to read live progress", "error", err)
		}

		var frame gin.H
		if progress == nil {
			frame = gin.H{"active": false}
		} else {
			frame = gin.H{"active": true, "progress": progress}
		}
		if err := conn.WriteJSON(SuccessResponse("progress", frame)); err != nil {
			h.logger.Debug("websocket disconnected", "error", err)
			return
		}

		select {
		case <-done:
			h.logger.Debug("progress websocket closed by client")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
