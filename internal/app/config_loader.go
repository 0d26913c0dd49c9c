package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/tunegrab/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.tunegrab")
		v.AddConfigPath("/etc/tunegrab")
	}

	// Defaults make every key known to viper, so TUNEGRAB_* variables
	// override keys the config file does not mention
	for key, value := range configValues(config) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("TUNEGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// configValues flattens config into viper keys
func configValues(c *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host": c.Server.Host,
		"server.port": c.Server.Port,

		"server.request_rate":  c.Server.RequestRate,
		"server.request_burst": c.Server.RequestBurst,

		"download.dir":              c.Download.Dir,
		"download.logs_dir":         c.Download.LogsDir,
		"download.audio_format":     c.Download.AudioFormat,
		"download.max_retries":      c.Download.MaxRetries,
		"download.retry_delay":      c.Download.RetryDelay.String(),
		"download.cache_validity":   c.Download.CacheValidity.String(),
		"download.failure_linger":   c.Download.FailureLinger.String(),
		"download.concurrent_limit": c.Download.ConcurrentLimit,

		"extractor.binary":       c.Extractor.Binary,
		"extractor.managed_dir":  c.Extractor.ManagedDir,
		"extractor.search_paths": c.Extractor.SearchPaths,
		"extractor.url_template": c.Extractor.URLTemplate,
		"extractor.extra_args":   c.Extractor.ExtraArgs,

		"bypass.initial_strategy":   c.Bypass.InitialStrategy,
		"bypass.browser":            c.Bypass.Browser,
		"bypass.fallback_browser":   c.Bypass.FallbackBrowser,
		"bypass.cookie_file":        c.Bypass.CookieFile,
		"bypass.geo_country":        c.Bypass.GeoCountry,
		"bypass.sleep_requests":     c.Bypass.SleepRequests,
		"bypass.sleep_interval":     c.Bypass.SleepInterval,
		"bypass.max_sleep_interval": c.Bypass.MaxSleepInterval,
		"bypass.strict_detection":   c.Bypass.StrictDetection,
		"bypass.detection_phrases":  c.Bypass.DetectionPhrases,

		"store.database_path": c.Store.DatabasePath,
		"store.completed_key": c.Store.CompletedKey,

		"notification.enabled": c.Notification.Enabled,
		"notification.sound":   c.Notification.Sound,
		"notification.method":  c.Notification.Method,

		"logging.level":       c.Logging.Level,
		"logging.format":      c.Logging.Format,
		"logging.output_path": c.Logging.OutputPath,
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.Dir = expandPath(config.Download.Dir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Extractor.ManagedDir = expandPath(config.Extractor.ManagedDir)
	config.Bypass.CookieFile = expandPath(config.Bypass.CookieFile)
	config.Store.DatabasePath = expandPath(config.Store.DatabasePath)

	// a bare binary name is resolved through the search order instead
	if strings.ContainsAny(config.Extractor.Binary, "/~$") {
		config.Extractor.Binary = expandPath(config.Extractor.Binary)
	}

	for i, p := range config.Extractor.SearchPaths {
		config.Extractor.SearchPaths[i] = expandPath(p)
	}

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.RequestRate < 0 || config.Server.RequestBurst < 0 {
		return fmt.Errorf("request rate and burst cannot be negative")
	}

	if config.Download.Dir == "" {
		return fmt.Errorf("download directory not configured")
	}

	if config.Download.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if config.Download.ConcurrentLimit < 0 {
		return fmt.Errorf("concurrent limit cannot be negative")
	}

	if config.Download.RetryDelay < 0 || config.Download.CacheValidity < 0 || config.Download.FailureLinger < 0 {
		return fmt.Errorf("download durations cannot be negative")
	}

	if !strings.Contains(config.Extractor.URLTemplate, "%s") {
		return fmt.Errorf("extractor url_template must contain %%s")
	}

	if !domain.ValidateStrategy(domain.Strategy(config.Bypass.InitialStrategy)) {
		return fmt.Errorf("invalid initial strategy: %s", config.Bypass.InitialStrategy)
	}

	if config.Store.DatabasePath == "" {
		return fmt.Errorf("store database path not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
