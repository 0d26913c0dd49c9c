package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ProgressWebSocketHandler pushes progress records of in-flight downloads
type ProgressWebSocketHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewProgressWebSocketHandler creates a new progress stream handler
func NewProgressWebSocketHandler(engine Engine, logger *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		engine: engine,
		logger: logger,
	}
}

// HandleWebSocket handles GET /api/v1/downloads/stream
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	// subscribe before the snapshot so no transition falls between them
	updates, unsubscribe := h.engine.Subscribe()
	defer unsubscribe()

	for _, progress := range h.engine.ActiveDownloads() {
		if err := writeJSON(conn, progress); err != nil {
			return
		}
	}

	done := readUntilClosed(conn)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case progress, ok := <-updates:
			if !ok {
				return
			}
			if err := writeJSON(conn, progress); err != nil {
				h.logger.Debug("Progress stream client gone", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
