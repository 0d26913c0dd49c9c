package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.log")

	log, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)
	log.Info("hello", zap.String("id", "abc123"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"id":"abc123"`)
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogQueueEvent("download_started", zap.String("id", "abc123"))
	ml.LogAppError("Failed to process download", zap.String("id", "xyz999"))
	require.NoError(t, ml.Close())

	reader := NewLogReader(dir)
	queue, err := reader.ReadLogs(CategoryQueue, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "download_started", queue[0].Message)
	assert.Equal(t, "abc123", queue[0].Fields["id"])

	errs, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
}

func TestMultiLogger_RotatesOnNewDay(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)
	defer ml.Close()

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	ml.now = func() time.Time { return day }
	ml.LogQueueEvent("before")
	day = day.Add(2 * time.Minute)
	ml.LogQueueEvent("after")
	require.NoError(t, ml.Sync())

	assert.FileExists(t, CategoryLogPath(dir, CategoryQueue, time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)))
	assert.FileExists(t, CategoryLogPath(dir, CategoryQueue, time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)))
}

func TestLogReader_RawDownloadLines(t *testing.T) {
	dir := t.TempDir()
	path := CategoryLogPath(dir, CategoryDownload, time.Now())
	content := "=== [2026-03-01 10:00:00] Download: abc123 ===\n" +
		"[abc123] [download]  45.2% of 5.67MiB at 2.3MiB/s ETA 00:01\n" +
		"[abc123] [STDERR] ERROR: Sign in to confirm you're not a bot\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reader := NewLogReader(dir)
	entries, err := reader.ReadLogs(CategoryDownload, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "abc123", entries[0].Fields["key"])
	assert.Equal(t, "warn", entries[1].Level)
	assert.Equal(t, "ERROR: Sign in to confirm you're not a bot", entries[1].Message)

	found, err := reader.SearchLogs(CategoryDownload, time.Now(), "not a bot", 0)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	byKey, err := reader.SearchLogs(CategoryDownload, time.Now(), "abc123", 0)
	require.NoError(t, err)
	assert.Len(t, byKey, 3)
}

func TestLogReader_MissingFileIsEmpty(t *testing.T) {
	entries, err := NewLogReader(t.TempDir()).ReadLogs(CategoryQueue, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogReader_AvailableDates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"queue-20260301.log", "queue-20260305.log", "queue-bogus.log", "error-20260301.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	dates, err := NewLogReader(dir).AvailableDates(CategoryQueue)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260305", "20260301"}, dates)
}

func TestLogReader_TailLogs(t *testing.T) {
	dir := t.TempDir()
	path := CategoryLogPath(dir, CategoryDownload, time.Now())
	require.NoError(t, os.WriteFile(path, []byte("[old] ignored\n"), 0644))

	reader := NewLogReader(dir)
	reader.pollInterval = 5 * time.Millisecond
	entries := make(chan LogEntry, 4)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- reader.TailLogs(CategoryDownload, entries, stop) }()

	// give the tailer time to seek to the end
	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("[abc123] fresh line\n")
	require.NoError(t, err)
	f.Close()

	select {
	case entry := <-entries:
		assert.Equal(t, "fresh line", entry.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("no tailed entry")
	}

	close(stop)
	assert.NoError(t, <-done)
}
