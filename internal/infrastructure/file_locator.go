package infrastructure

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tunegrab/internal/domain"
)

// AudioExtensions are probed in priority order, preferred formats first
var AudioExtensions = []string{"m4a", "mp3", "opus", "aac", "ogg", "flac", "wav", "webm"}

// IsAudioFile reports whether name has one of the known audio extensions
func IsAudioFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, known := range AudioExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// FileLocator memoizes where completed downloads live on disk. One shared
// timestamp governs the whole cache; any miss or expiry rebuilds every entry.
type FileLocator struct {
	dir      string
	metadata domain.MetadataStore
	validity time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	entries     map[string]string // "" means resolved to nothing
	hints       map[string]domain.Track
	refreshedAt time.Time
	rebuilds    int
}

// NewFileLocator creates a locator for files in dir
func NewFileLocator(dir string, metadata domain.MetadataStore, validity time.Duration, logger *zap.Logger) *FileLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLocator{
		dir:      dir,
		metadata: metadata,
		validity: validity,
		logger:   logger,
		now:      time.Now,
		hints:    make(map[string]domain.Track),
	}
}

// Resolve returns the media file of id. completed is the full completed set;
// it is only read when the cache has to be rebuilt.
func (l *FileLocator) Resolve(id string, completed []string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.freshLocked() {
		if path, ok := l.entries[id]; ok {
			return path, path != ""
		}
	}

	l.rebuildLocked(completed)
	path := l.entries[id]
	return path, path != ""
}

// Invalidate drops every entry and marks the cache stale
func (l *FileLocator) Invalidate() {
	l.mu.Lock()
	l.entries = nil
	l.refreshedAt = time.Time{}
	l.mu.Unlock()
}

// Stale reports whether the next Resolve will rebuild
func (l *FileLocator) Stale() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.freshLocked()
}

// Rebuilds returns how many full rebuilds have happened
func (l *FileLocator) Rebuilds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rebuilds
}

// Remember keeps track metadata in memory for filename reconstruction
func (l *FileLocator) Remember(track domain.Track) {
	l.mu.Lock()
	l.hints[track.ID] = track
	l.mu.Unlock()
}

// Forget drops the in-memory metadata of id
func (l *FileLocator) Forget(id string) {
	l.mu.Lock()
	delete(l.hints, id)
	l.mu.Unlock()
}

func (l *FileLocator) freshLocked() bool {
	return !l.refreshedAt.IsZero() && l.now().Sub(l.refreshedAt) < l.validity
}

func (l *FileLocator) rebuildLocked(completed []string) {
	entries := make(map[string]string, len(completed))
	var listing []string
	listed := false

	for _, id := range completed {
		if path := l.expectedPathLocked(id); path != "" {
			entries[id] = path
			continue
		}
		if !listed {
			listing = l.listAudioFiles()
			listed = true
		}
		entries[id] = l.scanFor(id, listing)
	}

	l.entries = entries
	l.refreshedAt = l.now()
	l.rebuilds++
	l.logger.Debug("File location cache rebuilt", zap.Int("entries", len(entries)))
}

// expectedPathLocked reconstructs the file name from metadata and probes
// every audio extension in priority order
func (l *FileLocator) expectedPathLocked(id string) string {
	track, ok := l.hints[id]
	if !ok && l.metadata != nil {
		if record, found := l.metadata.Load(id); found {
			track, ok = record.Track, true
		}
	}
	if !ok {
		return ""
	}

	base := MediaBaseName(track.Title, track.Uploader)
	for _, ext := range AudioExtensions {
		path := filepath.Join(l.dir, base+"."+ext)
		if isRegularFile(path) {
			return path
		}
	}
	return ""
}

func (l *FileLocator) listAudioFiles() []string {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("Failed to scan downloads directory", zap.String("dir", l.dir), zap.Error(err))
		}
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && IsAudioFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	return names
}

// scanFor returns the first audio file tagged with the identifier, as yt-dlp's
// default "%(title)s [%(id)s]" template produces
func (l *FileLocator) scanFor(id string, listing []string) string {
	for _, name := range listing {
		if nameCarriesID(name, id) {
			return filepath.Join(l.dir, name)
		}
	}
	return ""
}

// nameCarriesID matches "[id]" anywhere, a bare "id.ext", or a trailing
// " id" word. Ids may contain dashes, so a dash is not a boundary.
func nameCarriesID(name, id string) bool {
	if id == "" {
		return false
	}
	if strings.Contains(name, "["+id+"]") {
		return true
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return stem == id || strings.HasSuffix(stem, " "+id)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
