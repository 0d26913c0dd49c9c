package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDownloadRecord(t *testing.T) {
	track := Track{ID: "abc123", Title: "Song", Uploader: "Band"}

	record := NewDownloadRecord(track)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "abc123", record.VideoID)
	assert.Equal(t, "Song", record.Title)
	assert.Equal(t, StatusQueued, record.Status)
	assert.Equal(t, 0, record.RetryCount)
}

func TestDownloadRecord_Lifecycle(t *testing.T) {
	record := NewDownloadRecord(Track{ID: "abc123"})

	record.MarkProcessing(StrategyUserAgent)
	assert.Equal(t, StatusProcessing, record.Status)
	assert.NotNil(t, record.StartedAt)
	assert.False(t, record.IsTerminal())

	record.MarkRetry(StrategyCookieFile, 1)
	assert.Equal(t, 1, record.RetryCount)
	assert.Equal(t, StrategyCookieFile, record.Strategy)

	record.MarkCompleted("/music/Song - Band.m4a")
	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, 0, record.ExitCode)
	assert.NotNil(t, record.CompletedAt)
	assert.True(t, record.IsTerminal())
}

func TestDownloadRecord_MarkFailed(t *testing.T) {
	record := NewDownloadRecord(Track{ID: "xyz999"})

	record.MarkFailed(1, errors.New("retries exhausted"))

	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, 1, record.ExitCode)
	assert.Equal(t, "retries exhausted", record.ErrorMessage)
	assert.True(t, record.IsTerminal())
}

func TestNextStrategy_Wraps(t *testing.T) {
	assert.Equal(t, StrategyCookieFile, NextStrategy(StrategyUserAgent))
	assert.Equal(t, StrategyBrowserCookies, NextStrategy(StrategyGeoBypass))
	assert.Equal(t, StrategyBrowserCookies, NextStrategy("bogus"))
}

func TestBypassState_AdvanceVisitsDistinctStrategies(t *testing.T) {
	state := NewBypassState(StrategyUserAgent, 3)
	seen := map[Strategy]bool{state.Strategy: true}

	for state.CanRetry() {
		next := state.Advance()
		assert.False(t, seen[next], "strategy %s repeated", next)
		seen[next] = true
	}

	assert.Equal(t, 3, state.Retries)
	assert.Equal(t, 4, state.Attempt())
	assert.Len(t, seen, 4)

	state.Reset()
	assert.Equal(t, 0, state.Retries)
}

func TestValidateStrategy(t *testing.T) {
	for _, s := range StrategyCycle {
		assert.True(t, ValidateStrategy(s))
	}
	assert.False(t, ValidateStrategy("invalid"))
}

func TestDownloadError_Is(t *testing.T) {
	exhausted := &DownloadError{Kind: KindExhaustedRetries, ID: "xyz999", ExitCode: 1, Retries: 3}
	wrapped := fmt.Errorf("request: %w", exhausted)

	assert.True(t, errors.Is(wrapped, ErrExhaustedRetries))
	assert.False(t, errors.Is(wrapped, ErrStartupFailure))
	assert.Contains(t, exhausted.Error(), "exit code 1 after 3 retries")

	startErr := &StartError{Binary: "yt-dlp", Err: errors.New("not found")}
	startup := &DownloadError{Kind: KindStartupFailure, ID: "abc", Err: startErr}
	assert.True(t, errors.Is(startup, ErrStartupFailure))

	var se *StartError
	assert.True(t, errors.As(startup, &se))
	assert.Equal(t, "yt-dlp", se.Binary)
}

func TestDownloadProgress_ApplyAndRetry(t *testing.T) {
	p := NewDownloadProgress("abc123", StrategyUserAgent)
	assert.Equal(t, PlaceholderRate, p.Rate)
	assert.Equal(t, 1, p.Attempt)

	p = p.Apply(ProgressUpdate{Fraction: 0.5, Rate: "1MiB/s", Size: "4MiB"})
	assert.Equal(t, 0.5, p.Fraction)
	assert.Equal(t, "1MiB/s", p.Rate)
	assert.Equal(t, PlaceholderETA, p.ETA)

	r := p.Retrying(StrategyCookieFile, 2)
	assert.Equal(t, 0.0, r.Fraction)
	assert.Equal(t, RetryingPlaceholder, r.Rate)
	assert.Equal(t, 2, r.Attempt)

	f := r.Failed("boom")
	assert.True(t, f.IsTerminal())
	assert.Equal(t, "boom", f.Error)
}

func TestValidateTrackID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"dQw4w9WgXcQ", true},
		{"abc_123-x", true},
		{"", false},
		{"../escaped", false},
		{"a/b", false},
		{`a\b`, false},
		{"..", false},
		{"id with space", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateTrackID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidTrackID)
		})
	}
}
