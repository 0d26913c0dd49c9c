package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yourusername/tunegrab/internal/domain"
)

const progressBarWidth = 30

// progressBar renders fraction as a fixed-width bar
func progressBar(fraction float64) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * progressBarWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", progressBarWidth-filled) + "]"
}

// formatProgress renders one progress record on a single line
func formatProgress(p domain.DownloadProgress) string {
	if p.Error != "" {
		return fmt.Sprintf("%s failed: %s", p.ID, p.Error)
	}
	if p.Completed {
		return fmt.Sprintf("%s %s done", p.ID, progressBar(1))
	}
	return fmt.Sprintf("%s %s %5.1f%% of %s at %s ETA %s (attempt %d, %s)",
		p.ID, progressBar(p.Fraction), p.Fraction*100, p.Size, p.Rate, p.ETA, p.Attempt, p.Strategy)
}

// formatDuration renders track seconds as m:ss, or h:mm:ss past an hour
func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "--:--"
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// fileSize renders the size of path, or "-" when it cannot be read locally
func fileSize(path string) string {
	if path == "" {
		return "-"
	}
	info, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	return humanize.Bytes(uint64(info.Size()))
}

// renderLibrary writes the library listing as a table
func renderLibrary(w io.Writer, tracks []domain.DownloadedTrack, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUPLOADER\tLENGTH\tSIZE\tDOWNLOADED")
	for _, t := range tracks {
		downloaded := "-"
		if !t.DownloadedAt.IsZero() {
			downloaded = humanize.RelTime(t.DownloadedAt, now, "ago", "from now")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			truncate(t.Title, 40),
			truncate(t.Uploader, 24),
			formatDuration(t.Duration),
			fileSize(t.FilePath),
			downloaded)
	}
	tw.Flush()
}

// renderHistory writes history records as a table
func renderHistory(w io.Writer, records []*domain.DownloadRecord, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VIDEO\tTITLE\tSTATUS\tSTRATEGY\tRETRIES\tCREATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.VideoID,
			truncate(r.Title, 40),
			r.Status,
			r.Strategy,
			r.RetryCount,
			humanize.RelTime(r.CreatedAt, now, "ago", "from now"))
	}
	tw.Flush()
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
