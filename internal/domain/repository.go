package domain

import "time"

// CompletedStore persists the completed-download set across process lifetimes
type CompletedStore interface {
	// LoadCompleted returns the persisted identifiers
	LoadCompleted() ([]string, error)

	// SaveCompleted replaces the persisted identifiers
	SaveCompleted(ids []string) error
}

// MetadataStore persists per-track metadata, one record per identifier
type MetadataStore interface {
	Save(track Track, downloadedAt time.Time) error

	// Load returns false for missing or unreadable records
	Load(id string) (*TrackMetadata, bool)

	Delete(id string) error

	// Path is the location of the record for id
	Path(id string) string
}

// DownloadRepository defines the interface for download history persistence
type DownloadRepository interface {
	// Create creates a new record
	Create(record *DownloadRecord) error

	// Update updates an existing record
	Update(record *DownloadRecord) error

	// FindByID finds a record by ID
	FindByID(id string) (*DownloadRecord, error)

	// FindByVideoID returns the records of a track, newest first
	FindByVideoID(videoID string) ([]*DownloadRecord, error)

	// FindAll finds all records with optional filters
	FindAll(filters map[string]interface{}) ([]*DownloadRecord, error)

	// GetStats returns download statistics
	GetStats() (*DownloadStats, error)
}

// DownloadStats represents download statistics
type DownloadStats struct {
	Total      int64 `json:"total"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
}

// Notifier is informed about terminal download outcomes
type Notifier interface {
	NotifyDownloadCompleted(track Track)
	NotifyDownloadFailed(track Track, err error)
}
