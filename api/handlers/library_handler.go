package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LibraryHandler serves the downloaded tracks
type LibraryHandler struct {
	engine Engine
	logger *zap.Logger
}

// NewLibraryHandler creates a new library handler
func NewLibraryHandler(engine Engine, logger *zap.Logger) *LibraryHandler {
	return &LibraryHandler{
		engine: engine,
		logger: logger,
	}
}

// LibraryEntryResponse describes the local state of one track id
type LibraryEntryResponse struct {
	ID          string `json:"id"`
	Downloaded  bool   `json:"downloaded"`
	Downloading bool   `json:"downloading"`
	Path        string `json:"path,omitempty"`
}

// ListTracks handles GET /api/v1/library
func (h *LibraryHandler) ListTracks(c *gin.Context) {
	tracks := h.engine.ListDownloadedTracks()
	c.JSON(http.StatusOK, gin.H{
		"tracks": tracks,
		"count":  len(tracks),
	})
}

// GetTrack handles GET /api/v1/library/:id
func (h *LibraryHandler) GetTrack(c *gin.Context) {
	id := c.Param("id")

	resp := LibraryEntryResponse{
		ID:          id,
		Downloaded:  h.engine.IsDownloaded(id),
		Downloading: h.engine.IsDownloading(id),
	}
	if path, ok := h.engine.FindFile(id); ok {
		resp.Path = path
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteTrack handles DELETE /api/v1/library/:id
func (h *LibraryHandler) DeleteTrack(c *gin.Context) {
	id := c.Param("id")

	if !h.engine.IsDownloaded(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "track not downloaded"})
		return
	}

	h.engine.DeleteDownload(id)
	h.logger.Info("Track deleted via API", zap.String("video_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "track deleted"})
}
