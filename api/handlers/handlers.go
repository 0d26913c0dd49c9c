package handlers

import (
	"github.com/yourusername/tunegrab/internal/app"
	"github.com/yourusername/tunegrab/internal/domain"
)

// Engine is the part of the download manager served over HTTP
type Engine interface {
	Progress(id string) (domain.DownloadProgress, bool)
	ActiveDownloads() []domain.DownloadProgress
	Cancel(id string) bool
	IsDownloaded(id string) bool
	IsDownloading(id string) bool
	FindFile(id string) (string, bool)
	ListDownloadedTracks() []domain.DownloadedTrack
	DeleteDownload(id string)
	CompletedIDs() []string
	Subscribe() (<-chan domain.DownloadProgress, func())
}

// Queue accepts download requests and serves the history
type Queue interface {
	Enqueue(track domain.Track) (app.EnqueueStatus, error)
	IsRunning() bool
	Pending() int
	GetRecord(id string) (*domain.DownloadRecord, error)
	ListHistory(filters map[string]interface{}) ([]*domain.DownloadRecord, error)
	TrackHistory(videoID string) ([]*domain.DownloadRecord, error)
	GetStats() (*domain.DownloadStats, error)
}

var (
	_ Engine = (*app.DownloadManager)(nil)
	_ Queue  = (*app.QueueManager)(nil)
)
