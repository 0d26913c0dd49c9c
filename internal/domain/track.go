package domain

import (
	"fmt"
	"regexp"
	"time"
)

// trackIDPattern matches extractor video ids. Ids name files in the downloads
// directory, so separators and dots are never accepted.
var trackIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateTrackID checks that id is safe to use as a file name component
func ValidateTrackID(id string) error {
	if !trackIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidTrackID, id)
	}
	return nil
}

// Track describes a remote audio item. It is a value type and is never
// mutated after construction.
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Uploader    string `json:"uploader"`
	Duration    int    `json:"duration"` // seconds, 0 = unknown
	Thumbnail   string `json:"thumbnail,omitempty"`
	Description string `json:"description,omitempty"`
}

// TrackMetadata is the persisted form of a Track plus its completion time
type TrackMetadata struct {
	Track
	DownloadedAt time.Time `json:"downloadDate"`
}

// DownloadedTrack is one entry of the library listing
type DownloadedTrack struct {
	Track
	DownloadedAt time.Time `json:"downloaded_at"`
	FilePath     string    `json:"file_path,omitempty"`
}

// Placeholder values shown before the first progress line arrives
const (
	PlaceholderRate     = "--"
	PlaceholderETA      = "--:--"
	PlaceholderSize     = "--"
	RetryingPlaceholder = "retrying"
)

// DownloadProgress is the live state of one in-flight download.
// Each parsed update replaces the previous record.
type DownloadProgress struct {
	ID        string   `json:"id"`
	Fraction  float64  `json:"fraction"`
	Rate      string   `json:"rate"`
	ETA       string   `json:"eta"`
	Size      string   `json:"size"`
	Completed bool     `json:"completed"`
	Error     string   `json:"error,omitempty"`
	Strategy  Strategy `json:"strategy,omitempty"`
	Attempt   int      `json:"attempt"`
}

// NewDownloadProgress creates the placeholder record inserted when a request
// enters the in-flight set
func NewDownloadProgress(id string, strategy Strategy) DownloadProgress {
	return DownloadProgress{
		ID:       id,
		Rate:     PlaceholderRate,
		ETA:      PlaceholderETA,
		Size:     PlaceholderSize,
		Strategy: strategy,
		Attempt:  1,
	}
}

// Retrying returns the placeholder published while the next attempt is prepared
func (p DownloadProgress) Retrying(strategy Strategy, attempt int) DownloadProgress {
	return DownloadProgress{
		ID:       p.ID,
		Rate:     RetryingPlaceholder,
		ETA:      PlaceholderETA,
		Size:     PlaceholderSize,
		Strategy: strategy,
		Attempt:  attempt,
	}
}

// Failed returns the terminal error record
func (p DownloadProgress) Failed(message string) DownloadProgress {
	p.Error = message
	p.Rate = PlaceholderRate
	p.ETA = PlaceholderETA
	return p
}

// IsTerminal reports whether the record describes a finished download
func (p DownloadProgress) IsTerminal() bool {
	return p.Completed || p.Error != ""
}

// ProgressUpdate is what the progress parser extracts from one output line
type ProgressUpdate struct {
	Fraction float64
	Rate     string
	ETA      string
	Size     string
}

// Apply produces the record superseding p for the given update
func (p DownloadProgress) Apply(u ProgressUpdate) DownloadProgress {
	next := DownloadProgress{
		ID:       p.ID,
		Fraction: u.Fraction,
		Rate:     orDefault(u.Rate, p.Rate),
		ETA:      orDefault(u.ETA, p.ETA),
		Size:     orDefault(u.Size, p.Size),
		Strategy: p.Strategy,
		Attempt:  p.Attempt,
	}
	if next.Rate == RetryingPlaceholder {
		next.Rate = PlaceholderRate
	}
	return next
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
