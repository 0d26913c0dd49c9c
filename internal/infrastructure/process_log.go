package infrastructure

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/yourusername/tunegrab/internal/domain"
	"github.com/yourusername/tunegrab/pkg/logger"
)

// ProcessLog appends raw extraction-tool output to a daily
// download-YYYYMMDD.log file in the logs directory
type ProcessLog struct {
	logsDir string
}

// NewProcessLog creates a process log. An empty dir disables it.
func NewProcessLog(logsDir string) *ProcessLog {
	return &ProcessLog{logsDir: logsDir}
}

// processLogSession is the open log of one subprocess. A nil session discards everything.
type processLogSession struct {
	mu   sync.Mutex
	key  string
	file *os.File
}

// Begin opens today's log file and writes the start marker
func (l *ProcessLog) Begin(key, cmdLine string) *processLogSession {
	if l == nil || l.logsDir == "" {
		return nil
	}
	file, err := l.openLogFile()
	if err != nil {
		return nil
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(file, "\n=== [%s] Download: %s ===\n", timestamp, key)
	fmt.Fprintf(file, "$ %s\n", cmdLine)
	return &processLogSession{key: key, file: file}
}

// openLogFile opens the download log file for today
func (l *ProcessLog) openLogFile() (*os.File, error) {
	if err := os.MkdirAll(l.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	path := logger.CategoryLogPath(l.logsDir, logger.CategoryDownload, time.Now())
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Line records one output line. Concurrent downloads share the file, so each
// line carries the request key.
func (s *processLogSession) Line(stream domain.Stream, line string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if stream == domain.StreamStderr {
		fmt.Fprintf(s.file, "[%s] [STDERR] %s\n", s.key, line)
		return
	}
	fmt.Fprintf(s.file, "[%s] %s\n", s.key, line)
}

// End writes the end marker and closes the file
func (s *processLogSession) End(success bool, message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(s.file, "[%s] %s %s: %s\n", timestamp, s.key, status, message)
	fmt.Fprintf(s.file, "=== END %s ===\n\n", s.key)
	s.file.Close()
}
