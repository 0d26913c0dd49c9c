package infrastructure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/tunegrab/internal/domain"
)

func TestJSONMetadataStore_SaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONMetadataStore(dir, nil)
	track := domain.Track{
		ID:          "abc123",
		Title:       "Song",
		Uploader:    "Band",
		Duration:    215,
		Thumbnail:   "https://i.ytimg.com/vi/abc123/hqdefault.jpg",
		Description: "live",
	}
	downloadedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(track, downloadedAt))
	assert.FileExists(t, filepath.Join(dir, "abc123_metadata.json"))

	loaded, ok := store.Load("abc123")
	require.True(t, ok)
	assert.Equal(t, track, loaded.Track)
	assert.True(t, downloadedAt.Equal(loaded.DownloadedAt))

	require.NoError(t, store.Delete("abc123"))
	_, ok = store.Load("abc123")
	assert.False(t, ok)

	assert.NoError(t, store.Delete("abc123"), "deleting a missing record is not an error")
}

func TestJSONMetadataStore_CorruptIsMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONMetadataStore(dir, nil)
	require.NoError(t, os.WriteFile(store.Path("bad"), []byte("{not json"), 0644))

	_, ok := store.Load("bad")
	assert.False(t, ok)

	_, ok = store.Load("missing")
	assert.False(t, ok)
}

func TestJSONMetadataStore_FillsMissingID(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONMetadataStore(dir, nil)
	require.NoError(t, os.WriteFile(store.Path("legacy"), []byte(`{"title":"Old","uploader":"Someone"}`), 0644))

	loaded, ok := store.Load("legacy")
	require.True(t, ok)
	assert.Equal(t, "legacy", loaded.ID)
	assert.Equal(t, "Old", loaded.Title)
	assert.True(t, loaded.DownloadedAt.IsZero())
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "file.json")

	require.NoError(t, writeFileAtomic(path, []byte("one")))
	require.NoError(t, writeFileAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
