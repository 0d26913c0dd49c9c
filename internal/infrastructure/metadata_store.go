package infrastructure

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tunegrab/internal/domain"
)

const metadataSuffix = "_metadata.json"

// JSONMetadataStore keeps one <id>_metadata.json sidecar per track in the
// downloads directory
type JSONMetadataStore struct {
	dir    string
	logger *zap.Logger
}

// NewJSONMetadataStore creates a metadata store rooted at dir
func NewJSONMetadataStore(dir string, logger *zap.Logger) *JSONMetadataStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONMetadataStore{dir: dir, logger: logger}
}

// Path returns the sidecar location for id
func (s *JSONMetadataStore) Path(id string) string {
	return filepath.Join(s.dir, id+metadataSuffix)
}

// Save writes the record atomically
func (s *JSONMetadataStore) Save(track domain.Track, downloadedAt time.Time) error {
	record := domain.TrackMetadata{Track: track, DownloadedAt: downloadedAt}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := writeFileAtomic(s.Path(track.ID), data); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", track.ID, err)
	}
	return nil
}

// Load returns the record for id. Missing and corrupt files are misses.
func (s *JSONMetadataStore) Load(id string) (*domain.TrackMetadata, bool) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("Metadata unreadable", zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}

	var record domain.TrackMetadata
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Debug("Metadata corrupt", zap.String("id", id), zap.Error(err))
		return nil, false
	}
	if record.ID == "" {
		record.ID = id
	}
	return &record, true
}

// Delete removes the sidecar. A missing file is not an error.
func (s *JSONMetadataStore) Delete(id string) error {
	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata for %s: %w", id, err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never see a partial record
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tunegrab-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
