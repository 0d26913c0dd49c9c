package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/tunegrab/internal/app"
	"github.com/yourusername/tunegrab/internal/domain"
	"go.uber.org/zap"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	queue  Queue
	engine Engine
	logger *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(queue Queue, engine Engine, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		queue:  queue,
		engine: engine,
		logger: logger,
	}
}

// AddDownloadRequest represents a request to download a track
type AddDownloadRequest struct {
	ID          string `json:"id" binding:"required"`
	Title       string `json:"title"`
	Uploader    string `json:"uploader"`
	Duration    int    `json:"duration"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Description string `json:"description,omitempty"`
}

// Track converts the request into a domain track
func (r AddDownloadRequest) Track() domain.Track {
	return domain.Track{
		ID:          strings.TrimSpace(r.ID),
		Title:       r.Title,
		Uploader:    r.Uploader,
		Duration:    r.Duration,
		Thumbnail:   r.Thumbnail,
		Description: r.Description,
	}
}

// AddDownload handles POST /api/v1/downloads
func (h *DownloadHandler) AddDownload(c *gin.Context) {
	var req AddDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	track := req.Track()
	if track.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "track id is required"})
		return
	}
	if err := domain.ValidateTrackID(track.ID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.queue.Enqueue(track)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTrackID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, app.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to enqueue download", zap.String("video_id", track.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": track.ID, "status": status})
}

// ListDownloads handles GET /api/v1/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	active := h.engine.ActiveDownloads()
	c.JSON(http.StatusOK, gin.H{
		"downloads": active,
		"count":     len(active),
		"pending":   h.queue.Pending(),
	})
}

// GetDownload handles GET /api/v1/downloads/:id
func (h *DownloadHandler) GetDownload(c *gin.Context) {
	id := c.Param("id")

	progress, ok := h.engine.Progress(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not found"})
		return
	}

	c.JSON(http.StatusOK, progress)
}

// CancelDownload handles POST /api/v1/downloads/:id/cancel
func (h *DownloadHandler) CancelDownload(c *gin.Context) {
	id := c.Param("id")

	if !h.engine.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "download not in progress"})
		return
	}

	h.logger.Info("Download cancelled via API", zap.String("video_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "download cancelled"})
}
