package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/tunegrab/internal/domain"
	"go.uber.org/zap"
)

// HistoryHandler serves the persisted download history
type HistoryHandler struct {
	queue  Queue
	logger *zap.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(queue Queue, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		queue:  queue,
		logger: logger,
	}
}

// ListHistory handles GET /api/v1/history
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	filters := make(map[string]interface{})
	if status := c.Query("status"); status != "" {
		filters["status"] = status
	}
	if videoID := c.Query("video_id"); videoID != "" {
		filters["video_id"] = videoID
	}
	if strategy := c.Query("strategy"); strategy != "" {
		filters["strategy"] = strategy
	}

	records, err := h.queue.ListHistory(filters)
	if err != nil {
		h.logger.Error("Failed to list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// TrackHistory handles GET /api/v1/library/:id/history
func (h *HistoryHandler) TrackHistory(c *gin.Context) {
	videoID := c.Param("id")
	if err := domain.ValidateTrackID(videoID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.queue.TrackHistory(videoID)
	if err != nil {
		h.logger.Error("Failed to load track history", zap.String("video_id", videoID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// GetRecord handles GET /api/v1/history/:id
func (h *HistoryHandler) GetRecord(c *gin.Context) {
	record, err := h.queue.GetRecord(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetStats handles GET /api/v1/history/stats
func (h *HistoryHandler) GetStats(c *gin.Context) {
	stats, err := h.queue.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
