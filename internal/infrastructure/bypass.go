package infrastructure

import (
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/yourusername/tunegrab/internal/domain"
)

// userAgents is the pool used by the user-agent rotation strategy
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

const (
	defaultReferer        = "https://www.youtube.com/"
	defaultAcceptLanguage = "en-US,en;q=0.9"
)

// BypassSelector builds extraction-tool arguments for each evasion strategy.
// It remembers the strategy that last succeeded so new requests start there.
type BypassSelector struct {
	config *domain.BypassConfig

	mu             sync.Mutex
	current        domain.Strategy
	keychainDenied bool
	rnd            *rand.Rand
}

// NewBypassSelector creates a selector. An unknown initial strategy falls
// back to user-agent rotation.
func NewBypassSelector(config *domain.BypassConfig) *BypassSelector {
	initial := domain.Strategy(config.InitialStrategy)
	if !domain.ValidateStrategy(initial) {
		initial = domain.StrategyUserAgent
	}
	return &BypassSelector{
		config:  config,
		current: initial,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Current returns the strategy new requests start with
func (s *BypassSelector) Current() domain.Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Remember makes a strategy that just succeeded the starting point for new requests
func (s *BypassSelector) Remember(strategy domain.Strategy) {
	if !domain.ValidateStrategy(strategy) {
		return
	}
	s.mu.Lock()
	s.current = strategy
	s.mu.Unlock()
}

// MarkKeychainDenied switches browser-cookie extraction to the fallback browser
func (s *BypassSelector) MarkKeychainDenied() {
	s.mu.Lock()
	s.keychainDenied = true
	s.mu.Unlock()
}

// Arguments returns the argument bundle for strategy
func (s *BypassSelector) Arguments(strategy domain.Strategy) []string {
	switch strategy {
	case domain.StrategyBrowserCookies:
		return []string{"--cookies-from-browser", s.browser()}
	case domain.StrategyCookieFile:
		if s.config.CookieFile != "" && fileExists(s.config.CookieFile) {
			return []string{"--cookies", s.config.CookieFile}
		}
		return s.userAgentArgs()
	case domain.StrategyRateLimit:
		return []string{
			"--sleep-requests", orDefaultString(s.config.SleepRequests, "1.5"),
			"--sleep-interval", orDefaultString(s.config.SleepInterval, "3"),
			"--max-sleep-interval", orDefaultString(s.config.MaxSleepInterval, "8"),
		}
	case domain.StrategyGeoBypass:
		return []string{
			"--geo-bypass-country", orDefaultString(s.config.GeoCountry, "US"),
			"--extractor-args", "youtube:player_skip=configs",
		}
	default:
		return s.userAgentArgs()
	}
}

func (s *BypassSelector) browser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keychainDenied && s.config.FallbackBrowser != "" {
		return s.config.FallbackBrowser
	}
	return orDefaultString(s.config.Browser, "chrome")
}

func (s *BypassSelector) userAgentArgs() []string {
	s.mu.Lock()
	ua := userAgents[s.rnd.Intn(len(userAgents))]
	s.mu.Unlock()

	return []string{
		"--user-agent", ua,
		"--add-header", "Referer:" + defaultReferer,
		"--add-header", "Accept-Language:" + defaultAcceptLanguage,
	}
}

func orDefaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
