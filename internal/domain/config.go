package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Extractor    ExtractorConfig    `mapstructure:"extractor"`
	Bypass       BypassConfig       `mapstructure:"bypass"`
	Store        StoreConfig        `mapstructure:"store"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host         string  `mapstructure:"host"`
	Port         int     `mapstructure:"port"`
	RequestRate  float64 `mapstructure:"request_rate"` // download submissions per second, 0 = unlimited
	RequestBurst int     `mapstructure:"request_burst"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	Dir             string        `mapstructure:"dir"`
	LogsDir         string        `mapstructure:"logs_dir"`
	AudioFormat     string        `mapstructure:"audio_format"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	CacheValidity   time.Duration `mapstructure:"cache_validity"`
	FailureLinger   time.Duration `mapstructure:"failure_linger"`
	ConcurrentLimit int           `mapstructure:"concurrent_limit"` // 0 = unbounded
}

// ExtractorConfig describes how the extraction tool is located and invoked
type ExtractorConfig struct {
	Binary      string   `mapstructure:"binary"`
	ManagedDir  string   `mapstructure:"managed_dir"` // install dir of the runtime dependency manager
	SearchPaths []string `mapstructure:"search_paths"`
	URLTemplate string   `mapstructure:"url_template"`
	ExtraArgs   []string `mapstructure:"extra_args"`
}

// BypassConfig contains the parameters of the evasion strategies
type BypassConfig struct {
	InitialStrategy  string   `mapstructure:"initial_strategy"`
	Browser          string   `mapstructure:"browser"`
	FallbackBrowser  string   `mapstructure:"fallback_browser"`
	CookieFile       string   `mapstructure:"cookie_file"`
	GeoCountry       string   `mapstructure:"geo_country"`
	SleepRequests    string   `mapstructure:"sleep_requests"`
	SleepInterval    string   `mapstructure:"sleep_interval"`
	MaxSleepInterval string   `mapstructure:"max_sleep_interval"`
	StrictDetection  bool     `mapstructure:"strict_detection"`
	DetectionPhrases []string `mapstructure:"detection_phrases"`
}

// StoreConfig contains persistence configuration
type StoreConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	CompletedKey string `mapstructure:"completed_key"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send, log
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultDetectionPhrases are stderr fragments yt-dlp prints when the remote
// service decided the client is automated.
var DefaultDetectionPhrases = []string{
	"Sign in to confirm you're not a bot",
	"confirm you are not a bot",
	"HTTP Error 403",
	"HTTP Error 429",
	"Too Many Requests",
	"This content isn't available",
	"Requested format is not available",
	"nsig extraction failed",
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8737,
			RequestRate:  5,
			RequestBurst: 10,
		},
		Download: DownloadConfig{
			Dir:             "$HOME/Music/tunegrab",
			LogsDir:         "$HOME/.tunegrab/logs",
			AudioFormat:     "m4a",
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
			CacheValidity:   30 * time.Second,
			FailureLinger:   3 * time.Second,
			ConcurrentLimit: 0,
		},
		Extractor: ExtractorConfig{
			Binary:      "yt-dlp",
			ManagedDir:  "$HOME/.tunegrab/bin",
			SearchPaths: []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin", "$HOME/.local/bin"},
			URLTemplate: "https://www.youtube.com/watch?v=%s",
		},
		Bypass: BypassConfig{
			InitialStrategy:  string(StrategyUserAgent),
			Browser:          "chrome",
			FallbackBrowser:  "firefox",
			CookieFile:       "$HOME/.tunegrab/cookies.txt",
			GeoCountry:       "US",
			SleepRequests:    "1.5",
			SleepInterval:    "3",
			MaxSleepInterval: "8",
			StrictDetection:  false,
			DetectionPhrases: DefaultDetectionPhrases,
		},
		Store: StoreConfig{
			DatabasePath: "$HOME/.tunegrab/state.db",
			CompletedKey: "downloadedVideoIds",
		},
		Notification: NotificationConfig{
			Enabled: true,
			Sound:   false,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
