package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yourusername/tunegrab/internal/domain"
	"github.com/yourusername/tunegrab/pkg/logger"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:           "tunegrab",
		Short:         "tunegrab CLI - audio download manager",
		Long:          `A command-line interface for downloading audio tracks through a local tunegrab server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8737", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(activeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(serverCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() *apiClient {
	if !noAutoStart {
		if err := ensureServerRunning(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return newAPIClient(serverURL)
}

var downloadCmd = &cobra.Command{
	Use:   "download [id]",
	Short: "Request the download of a track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		title, _ := cmd.Flags().GetString("title")
		uploader, _ := cmd.Flags().GetString("uploader")
		duration, _ := cmd.Flags().GetInt("duration")
		wait, _ := cmd.Flags().GetBool("wait")

		req := domain.Track{
			ID:       args[0],
			Title:    title,
			Uploader: uploader,
			Duration: duration,
		}

		var result struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := client.post("/api/v1/downloads", req, &result); err != nil {
			return err
		}

		fmt.Printf("%s: %s\n", result.ID, result.Status)
		if !wait || result.Status == "downloaded" {
			return nil
		}
		return waitForDownload(client, result.ID)
	},
}

const (
	pollInterval = 500 * time.Millisecond
	// queued requests may take a moment to reach the engine
	startGrace = 5 * time.Second
)

// waitForDownload polls the progress record until it leaves the in-flight set
func waitForDownload(client *apiClient, id string) error {
	var last domain.DownloadProgress
	seen := false
	started := time.Now()
	for {
		var progress domain.DownloadProgress
		err := client.get("/api/v1/downloads/"+url.PathEscape(id), nil, &progress)
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			if !seen && time.Since(started) < startGrace {
				time.Sleep(pollInterval)
				continue
			}
			break
		}
		if err != nil {
			return err
		}
		seen = true
		if progress != last {
			fmt.Printf("\r%s", formatProgress(progress))
			last = progress
		}
		if progress.IsTerminal() {
			break
		}
		time.Sleep(pollInterval)
	}
	fmt.Println()
	if last.Error != "" {
		return fmt.Errorf("download of %s failed: %s", id, last.Error)
	}

	var entry libraryEntry
	if err := client.get("/api/v1/library/"+url.PathEscape(id), nil, &entry); err != nil {
		return err
	}
	if !entry.Downloaded {
		return fmt.Errorf("download of %s did not complete", id)
	}
	fmt.Printf("Saved to %s\n", entry.Path)
	return nil
}

// libraryEntry mirrors the response of GET /api/v1/library/:id
type libraryEntry struct {
	ID          string `json:"id"`
	Downloaded  bool   `json:"downloaded"`
	Downloading bool   `json:"downloading"`
	Path        string `json:"path"`
}

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show the progress of an in-flight download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var progress domain.DownloadProgress
		if err := client.get("/api/v1/downloads/"+url.PathEscape(args[0]), nil, &progress); err != nil {
			return err
		}
		fmt.Println(formatProgress(progress))
		return nil
	},
}

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "List in-flight downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var result struct {
			Downloads []domain.DownloadProgress `json:"downloads"`
			Pending   int                       `json:"pending"`
		}
		if err := client.get("/api/v1/downloads", nil, &result); err != nil {
			return err
		}

		if len(result.Downloads) == 0 {
			fmt.Println("No downloads in progress")
		}
		for _, p := range result.Downloads {
			fmt.Println(formatProgress(p))
		}
		if result.Pending > 0 {
			fmt.Printf("%d queued\n", result.Pending)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded tracks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var result struct {
			Tracks []domain.DownloadedTrack `json:"tracks"`
		}
		if err := client.get("/api/v1/library", nil, &result); err != nil {
			return err
		}

		renderLibrary(os.Stdout, result.Tracks, time.Now())
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find [id]",
	Short: "Print the local file of a downloaded track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var entry libraryEntry
		if err := client.get("/api/v1/library/"+url.PathEscape(args[0]), nil, &entry); err != nil {
			return err
		}

		switch {
		case entry.Path != "":
			fmt.Println(entry.Path)
		case entry.Downloading:
			fmt.Printf("%s is still downloading\n", entry.ID)
		case entry.Downloaded:
			return fmt.Errorf("%s is downloaded but its file is missing", entry.ID)
		default:
			return fmt.Errorf("%s is not downloaded", entry.ID)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel an in-flight download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()
		if err := client.post("/api/v1/downloads/"+url.PathEscape(args[0])+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Println("Download cancelled")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a downloaded track and its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()
		if err := client.delete("/api/v1/library/"+url.PathEscape(args[0]), nil); err != nil {
			return err
		}
		fmt.Println("Track deleted")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the download history",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		status, _ := cmd.Flags().GetString("status")
		videoID, _ := cmd.Flags().GetString("video-id")

		path := "/api/v1/history"
		query := url.Values{}
		if videoID != "" && status == "" {
			path = "/api/v1/library/" + url.PathEscape(videoID) + "/history"
		} else {
			if status != "" {
				query.Set("status", status)
			}
			if videoID != "" {
				query.Set("video_id", videoID)
			}
		}

		var result struct {
			Records []*domain.DownloadRecord `json:"records"`
		}
		if err := client.get(path, query, &result); err != nil {
			return err
		}

		renderHistory(os.Stdout, result.Records, time.Now())
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		var stats domain.DownloadStats
		if err := client.get("/api/v1/history/stats", nil, &stats); err != nil {
			return err
		}

		fmt.Println("Download Statistics:")
		fmt.Printf("  Total:      %s\n", humanize.Comma(stats.Total))
		fmt.Printf("  Queued:     %s\n", humanize.Comma(stats.Queued))
		fmt.Printf("  Processing: %s\n", humanize.Comma(stats.Processing))
		fmt.Printf("  Completed:  %s\n", humanize.Comma(stats.Completed))
		fmt.Printf("  Failed:     %s\n", humanize.Comma(stats.Failed))
		fmt.Printf("  Cancelled:  %s\n", humanize.Comma(stats.Cancelled))
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [category]",
	Short: "Show server logs (queue, error, download)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := ensureServer()

		category := logger.LogCategory(args[0])
		if !logger.ValidCategory(category) {
			return fmt.Errorf("invalid category %q", args[0])
		}

		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")
		date, _ := cmd.Flags().GetString("date")

		query := url.Values{"limit": {strconv.Itoa(limit)}}
		if date != "" {
			query.Set("date", date)
		}
		path := "/api/v1/logs/" + string(category)
		if search != "" {
			path += "/search"
			query.Set("q", search)
		}

		var result struct {
			Entries []logger.LogEntry `json:"entries"`
		}
		if err := client.get(path, query, &result); err != nil {
			return err
		}

		for _, e := range result.Entries {
			fmt.Printf("%s %-5s %s", e.Timestamp, e.Level, e.Message)
			for k, v := range e.Fields {
				fmt.Printf(" %s=%v", k, v)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringP("title", "t", "", "Track title")
	downloadCmd.Flags().StringP("uploader", "u", "", "Track uploader")
	downloadCmd.Flags().IntP("duration", "d", 0, "Track duration in seconds")
	downloadCmd.Flags().BoolP("wait", "w", false, "Wait for the download to finish")
	historyCmd.Flags().StringP("status", "s", "", "Filter by status")
	historyCmd.Flags().String("video-id", "", "Filter by track id")
	logsCmd.Flags().IntP("limit", "n", 100, "Number of entries")
	logsCmd.Flags().StringP("search", "q", "", "Only entries containing this text")
	logsCmd.Flags().String("date", "", "Day to read (YYYY-MM-DD), default today")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
