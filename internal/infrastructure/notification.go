package infrastructure

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/tunegrab/internal/domain"
	"go.uber.org/zap"
)

// NotificationService handles sending desktop notifications
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		err = n.run("osascript", "-e", n.appleScript(title, message))
	case "notify-send":
		err = n.run("notify-send", title, message)
	case "log":
		n.logger.Info("Notification", zap.String("title", title), zap.String("message", message))
		return nil
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

func (n *NotificationService) appleScript(title, message string) string {
	script := fmt.Sprintf(`display notification %q with title %q`, escapeAppleScript(message), escapeAppleScript(title))
	if n.config.Sound {
		script += ` sound name "Glass"`
	}
	return script
}

// NotifyDownloadCompleted sends notification when a track finished downloading
func (n *NotificationService) NotifyDownloadCompleted(track domain.Track) {
	n.Send("Download Completed", truncateString(trackLabel(track), 60))
}

// NotifyDownloadFailed sends notification when a download failed for good
func (n *NotificationService) NotifyDownloadFailed(track domain.Track, err error) {
	message := truncateString(trackLabel(track), 40)

	var dlErr *domain.DownloadError
	switch {
	case errors.As(err, &dlErr) && dlErr.Kind == domain.KindStartupFailure:
		message += ": yt-dlp could not start"
	case errors.As(err, &dlErr):
		message += fmt.Sprintf(": exit code %d after %d retries", dlErr.ExitCode, dlErr.Retries)
	case err != nil:
		message += ": " + truncateString(err.Error(), 40)
	}
	n.Send("Download Failed", message)
}

func trackLabel(track domain.Track) string {
	if track.Title == "" {
		return track.ID
	}
	if track.Uploader == "" {
		return track.Title
	}
	return track.Title + " - " + track.Uploader
}

func escapeAppleScript(s string) string {
	return strings.NewReplacer(`\`, "", `"`, "'").Replace(s)
}

// truncateString truncates a string to the specified number of runes
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
