package infrastructure

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/tunegrab/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// kvEntry is a small key-value row for process-wide state
type kvEntry struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (kvEntry) TableName() string {
	return "kv_entries"
}

// filterColumns are the columns FindAll accepts as filters
var filterColumns = map[string]bool{
	"video_id": true,
	"status":   true,
	"strategy": true,
}

// SQLiteStore implements CompletedStore and DownloadRepository using SQLite
type SQLiteStore struct {
	db           *gorm.DB
	completedKey string
}

// NewSQLiteStore opens (and migrates) the database at dbPath. completedKey
// names the row holding the completed-download set.
func NewSQLiteStore(dbPath, completedKey string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&kvEntry{}, &domain.DownloadRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if completedKey == "" {
		completedKey = "downloadedVideoIds"
	}
	return &SQLiteStore{db: db, completedKey: completedKey}, nil
}

// LoadCompleted returns the persisted completed set. A missing row is an empty set.
func (r *SQLiteStore) LoadCompleted() ([]string, error) {
	var entry kvEntry
	err := r.db.Where(&kvEntry{Key: r.completedKey}).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(entry.Value), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.completedKey, err)
	}
	return ids, nil
}

// SaveCompleted replaces the persisted completed set
func (r *SQLiteStore) SaveCompleted(ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	entry := kvEntry{Key: r.completedKey, Value: string(data), UpdatedAt: time.Now()}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

// Create creates a new history record
func (r *SQLiteStore) Create(record *domain.DownloadRecord) error {
	return r.db.Create(record).Error
}

// Update updates an existing history record
func (r *SQLiteStore) Update(record *domain.DownloadRecord) error {
	return r.db.Save(record).Error
}

// FindByID finds a history record by ID
func (r *SQLiteStore) FindByID(id string) (*domain.DownloadRecord, error) {
	var record domain.DownloadRecord
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByVideoID returns every record of a track, newest first
func (r *SQLiteStore) FindByVideoID(videoID string) ([]*domain.DownloadRecord, error) {
	var records []*domain.DownloadRecord
	err := r.db.Where("video_id = ?", videoID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// FindAll finds all records with optional filters
func (r *SQLiteStore) FindAll(filters map[string]interface{}) ([]*domain.DownloadRecord, error) {
	var records []*domain.DownloadRecord
	query := r.db

	for key, value := range filters {
		if !filterColumns[key] {
			return nil, fmt.Errorf("unsupported filter %q", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC").Find(&records).Error
	return records, err
}

// GetStats returns download statistics
func (r *SQLiteStore) GetStats() (*domain.DownloadStats, error) {
	stats := &domain.DownloadStats{}

	if err := r.db.Model(&domain.DownloadRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.DownloadStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.DownloadRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusQueued:
			stats.Queued = sc.Count
		case domain.StatusProcessing:
			stats.Processing = sc.Count
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		case domain.StatusCancelled:
			stats.Cancelled = sc.Count
		}
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteStore) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
