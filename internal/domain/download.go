package domain

import (
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the current status of a download request
type DownloadStatus string

const (
	StatusQueued     DownloadStatus = "queued"
	StatusProcessing DownloadStatus = "processing"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
	StatusCancelled  DownloadStatus = "cancelled"
)

// DownloadRecord is the history entry of one download request
type DownloadRecord struct {
	ID           string         `json:"id" gorm:"primaryKey"`
	VideoID      string         `json:"video_id" gorm:"not null;index"`
	Title        string         `json:"title"`
	Uploader     string         `json:"uploader"`
	Status       DownloadStatus `json:"status" gorm:"not null;index"`
	Strategy     Strategy       `json:"strategy"`
	RetryCount   int            `json:"retry_count" gorm:"default:0"`
	ExitCode     int            `json:"exit_code" gorm:"default:0"`
	ErrorMessage string         `json:"error_message,omitempty"`
	FilePath     string         `json:"file_path,omitempty"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// NewDownloadRecord creates a history entry for a track
func NewDownloadRecord(track Track) *DownloadRecord {
	return &DownloadRecord{
		ID:        uuid.New().String(),
		VideoID:   track.ID,
		Title:     track.Title,
		Uploader:  track.Uploader,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// MarkProcessing marks the download as processing
func (d *DownloadRecord) MarkProcessing(strategy Strategy) {
	d.Status = StatusProcessing
	d.Strategy = strategy
	now := time.Now()
	d.StartedAt = &now
	d.UpdatedAt = now
}

// MarkRetry records the strategy of a new attempt
func (d *DownloadRecord) MarkRetry(strategy Strategy, exitCode int) {
	d.RetryCount++
	d.Strategy = strategy
	d.ExitCode = exitCode
	d.UpdatedAt = time.Now()
}

// MarkCompleted marks the download as completed
func (d *DownloadRecord) MarkCompleted(filePath string) {
	d.Status = StatusCompleted
	d.FilePath = filePath
	d.ExitCode = 0
	d.ErrorMessage = ""
	now := time.Now()
	d.CompletedAt = &now
	d.UpdatedAt = now
}

// MarkFailed marks the download as failed
func (d *DownloadRecord) MarkFailed(exitCode int, err error) {
	d.Status = StatusFailed
	d.ExitCode = exitCode
	if err != nil {
		d.ErrorMessage = err.Error()
	}
	d.UpdatedAt = time.Now()
}

// MarkCancelled marks the download as cancelled
func (d *DownloadRecord) MarkCancelled() {
	d.Status = StatusCancelled
	d.UpdatedAt = time.Now()
}

// IsTerminal checks if the download is in a terminal state
func (d *DownloadRecord) IsTerminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusFailed || d.Status == StatusCancelled
}
