package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryQueue    LogCategory = "queue"    // Request queue lifecycle events (JSON)
	CategoryError    LogCategory = "error"    // Application errors (JSON)
	CategoryDownload LogCategory = "download" // Raw yt-dlp output (plain text)
)

// Categories lists every category the log reader can serve
func Categories() []LogCategory {
	return []LogCategory{CategoryQueue, CategoryError, CategoryDownload}
}

// ValidCategory checks if a category name is known
func ValidCategory(category LogCategory) bool {
	for _, c := range Categories() {
		if c == category {
			return true
		}
	}
	return false
}

type categoryLogger struct {
	logger *zap.Logger
	file   *os.File
}

// MultiLogger provides categorized logging with separate daily files.
// Raw extractor output is written by the process runner into the download
// category file, not through this logger.
type MultiLogger struct {
	loggers     map[LogCategory]*categoryLogger
	levels      map[LogCategory]zapcore.Level
	config      MultiLoggerConfig
	mu          sync.RWMutex
	currentDate string
	now         func() time.Time
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger
func NewMultiLogger(config MultiLoggerConfig) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	ml := &MultiLogger{
		loggers: make(map[LogCategory]*categoryLogger),
		levels: map[LogCategory]zapcore.Level{
			CategoryQueue: level,
			CategoryError: zapcore.ErrorLevel,
		},
		config: config,
		now:    time.Now,
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if err := ml.openAllLocked(); err != nil {
		return nil, err
	}
	return ml, nil
}

func (ml *MultiLogger) openAllLocked() error {
	ml.currentDate = ml.now().Format("20060102")
	for category, level := range ml.levels {
		cl, err := ml.createStructuredLogger(category, level)
		if err != nil {
			return fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		ml.loggers[category] = cl
	}
	return nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, level zapcore.Level) (*categoryLogger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	logPath := CategoryLogPath(ml.config.LogsDir, category, ml.now())
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), level)
	return &categoryLogger{logger: zap.New(core), file: file}, nil
}

// CategoryLogPath is the file of category for the day of date
func CategoryLogPath(logsDir string, category LogCategory, date time.Time) string {
	filename := fmt.Sprintf("%s-%s.log", category, date.Format("20060102"))
	return filepath.Join(logsDir, filename)
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category, moving
// to a new file when the day changed
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.rotateIfNeeded()

	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if cl, ok := ml.loggers[category]; ok {
		return cl.logger
	}
	if cl, ok := ml.loggers[CategoryError]; ok {
		return cl.logger
	}
	return zap.NewNop()
}

func (ml *MultiLogger) rotateIfNeeded() {
	today := ml.now().Format("20060102")

	ml.mu.RLock()
	current := ml.currentDate
	ml.mu.RUnlock()
	if current == today {
		return
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.currentDate == today {
		return
	}

	old := ml.loggers
	ml.loggers = make(map[LogCategory]*categoryLogger)
	if err := ml.openAllLocked(); err != nil {
		// keep writing to yesterday's files
		ml.loggers = old
		return
	}
	for _, cl := range old {
		cl.logger.Sync()
		cl.file.Close()
	}
}

// Queue returns the queue logger (JSON format)
func (ml *MultiLogger) Queue() *zap.Logger {
	return ml.GetLogger(CategoryQueue)
}

// Error returns the error logger (JSON format)
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error (Go errors, panics)
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
}

// LogQueueEvent logs a queue lifecycle event with structured data
func (ml *MultiLogger) LogQueueEvent(event string, fields ...zap.Field) {
	ml.Queue().Info(event, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, cl := range ml.loggers {
		if err := cl.logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes all loggers and closes their files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for category, cl := range ml.loggers {
		cl.logger.Sync()
		if err := cl.file.Close(); err != nil {
			lastErr = err
		}
		delete(ml.loggers, category)
	}
	return lastErr
}
