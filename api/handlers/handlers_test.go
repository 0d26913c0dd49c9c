package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/tunegrab/internal/app"
	"github.com/yourusername/tunegrab/internal/domain"
	"github.com/yourusername/tunegrab/pkg/logger"
)

type fakeEngine struct {
	mu        sync.Mutex
	active    map[string]domain.DownloadProgress
	completed map[string]string
	tracks    []domain.DownloadedTrack
	deleted   []string
	updates   chan domain.DownloadProgress
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		active:    make(map[string]domain.DownloadProgress),
		completed: make(map[string]string),
		updates:   make(chan domain.DownloadProgress, 8),
	}
}

func (f *fakeEngine) Progress(id string) (domain.DownloadProgress, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.active[id]
	return p, ok
}

func (f *fakeEngine) ActiveDownloads() []domain.DownloadProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DownloadProgress, 0, len(f.active))
	for _, p := range f.active {
		out = append(out, p)
	}
	return out
}

func (f *fakeEngine) Cancel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.active[id]; !ok {
		return false
	}
	delete(f.active, id)
	return true
}

func (f *fakeEngine) IsDownloaded(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.completed[id]
	return ok
}

func (f *fakeEngine) IsDownloading(id string) bool {
	_, ok := f.Progress(id)
	return ok
}

func (f *fakeEngine) FindFile(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path, ok := f.completed[id]
	return path, ok && path != ""
}

func (f *fakeEngine) ListDownloadedTracks() []domain.DownloadedTrack {
	return f.tracks
}

func (f *fakeEngine) DeleteDownload(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.completed, id)
	f.deleted = append(f.deleted, id)
}

func (f *fakeEngine) CompletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.completed))
	for id := range f.completed {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeEngine) Subscribe() (<-chan domain.DownloadProgress, func()) {
	return f.updates, func() {}
}

type fakeQueue struct {
	running  bool
	status   app.EnqueueStatus
	err      error
	enqueued []domain.Track
	records  []*domain.DownloadRecord
	filters  map[string]interface{}
}

func (f *fakeQueue) Enqueue(track domain.Track) (app.EnqueueStatus, error) {
	f.enqueued = append(f.enqueued, track)
	return f.status, f.err
}

func (f *fakeQueue) IsRunning() bool { return f.running }

func (f *fakeQueue) Pending() int { return 0 }

func (f *fakeQueue) GetRecord(id string) (*domain.DownloadRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("record not found")
}

func (f *fakeQueue) ListHistory(filters map[string]interface{}) ([]*domain.DownloadRecord, error) {
	f.filters = filters
	return f.records, nil
}

func (f *fakeQueue) TrackHistory(videoID string) ([]*domain.DownloadRecord, error) {
	var out []*domain.DownloadRecord
	for _, r := range f.records {
		if r.VideoID == videoID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeQueue) GetStats() (*domain.DownloadStats, error) {
	return &domain.DownloadStats{Total: int64(len(f.records)), Completed: int64(len(f.records))}, nil
}

func setupRouter(queue *fakeQueue, engine *fakeEngine, logsDir string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	log := zap.NewNop()

	dh := NewDownloadHandler(queue, engine, log)
	router.POST("/downloads", dh.AddDownload)
	router.GET("/downloads", dh.ListDownloads)
	router.GET("/downloads/:id", dh.GetDownload)
	router.POST("/downloads/:id/cancel", dh.CancelDownload)

	lh := NewLibraryHandler(engine, log)
	router.GET("/library", lh.ListTracks)
	router.GET("/library/:id", lh.GetTrack)
	router.DELETE("/library/:id", lh.DeleteTrack)

	hh := NewHistoryHandler(queue, log)
	router.GET("/library/:id/history", hh.TrackHistory)
	router.GET("/history", hh.ListHistory)
	router.GET("/history/stats", hh.GetStats)
	router.GET("/history/:id", hh.GetRecord)

	health := NewHealthHandler(queue, engine)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)

	logs := NewLogHandler(logsDir)
	router.GET("/logs/categories", logs.GetCategories)
	router.GET("/logs/:category", logs.GetLogs)
	router.GET("/logs/:category/search", logs.SearchLogs)
	router.GET("/logs/:category/dates", logs.GetDates)

	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAddDownload(t *testing.T) {
	queue := &fakeQueue{status: app.EnqueueStarted}
	router := setupRouter(queue, newFakeEngine(), t.TempDir())

	w := do(router, http.MethodPost, "/downloads", `{"id":"abc123","title":"Song","uploader":"Band","duration":215}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "started", decode(t, w)["status"])
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, domain.Track{ID: "abc123", Title: "Song", Uploader: "Band", Duration: 215}, queue.enqueued[0])
}

func TestAddDownload_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		code int
	}{
		{name: "missing id", body: `{"title":"Song"}`, code: http.StatusBadRequest},
		{name: "blank id", body: `{"id":"  "}`, code: http.StatusBadRequest},
		{name: "malformed", body: `{`, code: http.StatusBadRequest},
		{name: "path traversal id", body: `{"id":"../escaped"}`, code: http.StatusBadRequest},
		{name: "separator in id", body: `{"id":"a/b"}`, code: http.StatusBadRequest},
		{name: "rejected by queue", err: fmt.Errorf("enqueue: %w", domain.ErrInvalidTrackID), body: `{"id":"abc123"}`, code: http.StatusBadRequest},
		{name: "queue full", err: app.ErrQueueFull, body: `{"id":"abc123"}`, code: http.StatusServiceUnavailable},
		{name: "other error", err: errors.New("boom"), body: `{"id":"abc123"}`, code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(&fakeQueue{err: tt.err}, newFakeEngine(), t.TempDir())
			w := do(router, http.MethodPost, "/downloads", tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestGetAndCancelDownload(t *testing.T) {
	engine := newFakeEngine()
	engine.active["abc123"] = domain.NewDownloadProgress("abc123", domain.StrategyUserAgent)
	router := setupRouter(&fakeQueue{}, engine, t.TempDir())

	w := do(router, http.MethodGet, "/downloads/abc123", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.PlaceholderRate, decode(t, w)["rate"])

	w = do(router, http.MethodGet, "/downloads", "")
	assert.Equal(t, float64(1), decode(t, w)["count"])

	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, "/downloads/abc123/cancel", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodPost, "/downloads/abc123/cancel", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/downloads/abc123", "").Code)
}

func TestLibrary(t *testing.T) {
	engine := newFakeEngine()
	engine.completed["abc123"] = "/music/Song - Band.m4a"
	engine.tracks = []domain.DownloadedTrack{{
		Track:        domain.Track{ID: "abc123", Title: "Song", Uploader: "Band"},
		DownloadedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		FilePath:     "/music/Song - Band.m4a",
	}}
	router := setupRouter(&fakeQueue{}, engine, t.TempDir())

	w := do(router, http.MethodGet, "/library", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(router, http.MethodGet, "/library/abc123", "")
	var entry LibraryEntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.True(t, entry.Downloaded)
	assert.Equal(t, "/music/Song - Band.m4a", entry.Path)

	w = do(router, http.MethodGet, "/library/zzz", "")
	entry = LibraryEntryResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.False(t, entry.Downloaded)
	assert.Empty(t, entry.Path)

	assert.Equal(t, http.StatusOK, do(router, http.MethodDelete, "/library/abc123", "").Code)
	assert.Equal(t, []string{"abc123"}, engine.deleted)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodDelete, "/library/abc123", "").Code)
}

func TestHistory(t *testing.T) {
	record := domain.NewDownloadRecord(domain.Track{ID: "abc123"})
	queue := &fakeQueue{records: []*domain.DownloadRecord{record}}
	router := setupRouter(queue, newFakeEngine(), t.TempDir())

	w := do(router, http.MethodGet, "/history?status=failed&video_id=abc123", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"status": "failed", "video_id": "abc123"}, queue.filters)

	w = do(router, http.MethodGet, "/history/stats", "")
	assert.Equal(t, float64(1), decode(t, w)["total"])

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/history/"+record.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/history/missing", "").Code)
}

func TestTrackHistory(t *testing.T) {
	queue := &fakeQueue{records: []*domain.DownloadRecord{
		domain.NewDownloadRecord(domain.Track{ID: "abc123"}),
		domain.NewDownloadRecord(domain.Track{ID: "def456"}),
	}}
	router := setupRouter(queue, newFakeEngine(), t.TempDir())

	w := do(router, http.MethodGet, "/library/abc123/history", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(router, http.MethodGet, "/library/"+url.PathEscape("a b")+"/history", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	queue := &fakeQueue{}
	engine := newFakeEngine()
	engine.completed["abc123"] = ""
	router := setupRouter(queue, engine, t.TempDir())

	w := do(router, http.MethodGet, "/health", "")
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Downloads.Completed)

	assert.Equal(t, http.StatusServiceUnavailable, do(router, http.MethodGet, "/ready", "").Code)
	queue.running = true
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/ready", "").Code)
}

func TestLogs(t *testing.T) {
	logsDir := t.TempDir()
	path := logger.CategoryLogPath(logsDir, logger.CategoryQueue, time.Now())
	content := `{"level":"info","ts":"2026-05-01T12:00:00Z","msg":"download_started","video_id":"abc123"}` + "\n" +
		`{"level":"error","ts":"2026-05-01T12:00:01Z","msg":"download_failed","video_id":"xyz999"}` + "\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	router := setupRouter(&fakeQueue{}, newFakeEngine(), logsDir)

	w := do(router, http.MethodGet, "/logs/queue", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = do(router, http.MethodGet, "/logs/queue/search?q=xyz999", "")
	assert.Equal(t, float64(1), decode(t, w)["count"])

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/logs/queue/search", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/logs/bogus", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/logs/queue?date=May", "").Code)

	w = do(router, http.MethodGet, "/logs/queue/dates", "")
	assert.Len(t, decode(t, w)["dates"], 1)

	w = do(router, http.MethodGet, "/logs/categories", "")
	assert.Len(t, decode(t, w)["categories"], 3)
}
