package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tunegrab/api/handlers"
	"github.com/yourusername/tunegrab/api/middleware"
	"github.com/yourusername/tunegrab/internal/domain"
	"github.com/yourusername/tunegrab/pkg/logger"
)

// RouterConfig bundles what SetupRouter wires into the HTTP API
type RouterConfig struct {
	Queue       handlers.Queue
	Engine      handlers.Engine
	Logger      *zap.Logger
	MultiLogger *logger.MultiLogger
	LogsDir     string
	Server      domain.ServerConfig
}

// SetupRouter sets up the HTTP router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.Logger(log, cfg.MultiLogger))
	router.Use(middleware.Recovery(log, cfg.MultiLogger))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(cfg.Queue, cfg.Engine)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(cfg.Queue, cfg.Engine, log)
		progressStream := handlers.NewProgressWebSocketHandler(cfg.Engine, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", middleware.RateLimit(cfg.Server.RequestRate, cfg.Server.RequestBurst), downloadHandler.AddDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stream", progressStream.HandleWebSocket)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
		}

		libraryHandler := handlers.NewLibraryHandler(cfg.Engine, log)
		historyHandler := handlers.NewHistoryHandler(cfg.Queue, log)
		library := v1.Group("/library")
		{
			library.GET("", libraryHandler.ListTracks)
			library.GET("/:id", libraryHandler.GetTrack)
			library.DELETE("/:id", libraryHandler.DeleteTrack)
			library.GET("/:id/history", historyHandler.TrackHistory)
		}

		history := v1.Group("/history")
		{
			history.GET("", historyHandler.ListHistory)
			history.GET("/stats", historyHandler.GetStats)
			history.GET("/:id", historyHandler.GetRecord)
		}

		logHandler := handlers.NewLogHandler(cfg.LogsDir)
		logStream := handlers.NewLogWebSocketHandler(cfg.LogsDir, log)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/stream", logStream.HandleWebSocket)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/dates", logHandler.GetDates)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
