package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// HealthHandler handles health check requests
type HealthHandler struct {
	queue  Queue
	engine Engine
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queue Queue, engine Engine) *HealthHandler {
	return &HealthHandler{
		queue:  queue,
		engine: engine,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running bool `json:"running"`
		Pending int  `json:"pending"`
	} `json:"queue"`
	Downloads struct {
		Active    int `json:"active"`
		Completed int `json:"completed"`
	} `json:"downloads"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
	}
	response.Queue.Running = h.queue.IsRunning()
	response.Queue.Pending = h.queue.Pending()
	response.Downloads.Active = len(h.engine.ActiveDownloads())
	response.Downloads.Completed = len(h.engine.CompletedIDs())

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queue.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue manager not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
