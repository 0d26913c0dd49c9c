package logger

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry represents a parsed log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Category  string                 `json:"category"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogReader reads categorized log files back for the API
type LogReader struct {
	logsDir      string
	pollInterval time.Duration
}

// NewLogReader creates a new log reader
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{
		logsDir:      logsDir,
		pollInterval: 100 * time.Millisecond,
	}
}

// GetLogPath returns the path to a category log file for a specific date
func (lr *LogReader) GetLogPath(category LogCategory, date time.Time) string {
	return CategoryLogPath(lr.logsDir, category, date)
}

// AvailableDates lists the days that have a log file for category, newest first
func (lr *LogReader) AvailableDates(category LogCategory) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(lr.logsDir, string(category)+"-*.log"))
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(matches))
	for _, m := range matches {
		date := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), string(category)+"-"), ".log")
		if _, err := time.Parse("20060102", date); err == nil {
			dates = append(dates, date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// ReadLogs returns the last limit entries of a category log file.
// A missing file is an empty result.
func (lr *LogReader) ReadLogs(category LogCategory, date time.Time, limit int) ([]LogEntry, error) {
	file, err := os.Open(lr.GetLogPath(category, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, parseLine(category, line))
	}
	return entries, nil
}

// SearchLogs returns entries whose message, level or fields contain query
func (lr *LogReader) SearchLogs(category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	entries, err := lr.ReadLogs(category, date, 0)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	filtered := []LogEntry{}
	for _, entry := range entries {
		if entryContains(entry, query) {
			filtered = append(filtered, entry)
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// TailLogs sends entries appended to today's file of category until stop is closed
func (lr *LogReader) TailLogs(category LogCategory, entries chan<- LogEntry, stop <-chan struct{}) error {
	var file *os.File
	for file == nil {
		f, err := os.Open(CategoryLogPath(lr.logsDir, category, time.Now()))
		switch {
		case err == nil:
			file = f
		case os.IsNotExist(err):
			select {
			case <-stop:
				return nil
			case <-time.After(time.Second):
			}
		default:
			return err
		}
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	reader := bufio.NewReader(file)

	var partial string
	for {
		line, err := reader.ReadString('\n')
		partial += line
		if err == io.EOF {
			select {
			case <-stop:
				return nil
			case <-time.After(lr.pollInterval):
			}
			continue
		}
		if err != nil {
			return err
		}

		text := strings.TrimSpace(partial)
		partial = ""
		if text == "" {
			continue
		}
		select {
		case entries <- parseLine(category, text):
		case <-stop:
			return nil
		}
	}
}

// parseLine decodes a zap JSON line; plain lines (raw extractor output) are
// kept verbatim with their "[key]" prefix split into a field
func parseLine(category LogCategory, line string) LogEntry {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err == nil {
		entry := LogEntry{Category: string(category), Fields: map[string]interface{}{}}
		for k, v := range raw {
			switch k {
			case "ts":
				entry.Timestamp, _ = v.(string)
			case "level":
				entry.Level, _ = v.(string)
			case "msg":
				entry.Message, _ = v.(string)
			default:
				entry.Fields[k] = v
			}
		}
		if len(entry.Fields) == 0 {
			entry.Fields = nil
		}
		return entry
	}

	entry := LogEntry{Level: "info", Message: line, Category: string(category)}
	if strings.HasPrefix(line, "[") {
		if end := strings.Index(line, "] "); end > 1 {
			entry.Fields = map[string]interface{}{"key": line[1:end]}
			entry.Message = line[end+2:]
			if strings.HasPrefix(entry.Message, "[STDERR] ") {
				entry.Level = "warn"
				entry.Message = strings.TrimPrefix(entry.Message, "[STDERR] ")
			}
		}
	}
	return entry
}

func entryContains(entry LogEntry, query string) bool {
	if strings.Contains(strings.ToLower(entry.Message), query) ||
		strings.Contains(strings.ToLower(entry.Level), query) {
		return true
	}
	for _, v := range entry.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}
