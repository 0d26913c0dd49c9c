package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/tunegrab/internal/domain"
)

func newTestSelector(t *testing.T) *BypassSelector {
	t.Helper()
	config := domain.DefaultConfig().Bypass
	config.CookieFile = filepath.Join(t.TempDir(), "missing-cookies.txt")
	return NewBypassSelector(&config)
}

func TestBypassSelector_DefaultsToUserAgent(t *testing.T) {
	sel := NewBypassSelector(&domain.BypassConfig{InitialStrategy: "nonsense"})
	assert.Equal(t, domain.StrategyUserAgent, sel.Current())
}

func TestBypassSelector_Remember(t *testing.T) {
	sel := newTestSelector(t)

	sel.Remember(domain.StrategyGeoBypass)
	assert.Equal(t, domain.StrategyGeoBypass, sel.Current())

	sel.Remember("bogus")
	assert.Equal(t, domain.StrategyGeoBypass, sel.Current())
}

func TestBypassSelector_UserAgentArgs(t *testing.T) {
	sel := newTestSelector(t)

	args := sel.Arguments(domain.StrategyUserAgent)
	require.Len(t, args, 6)
	assert.Equal(t, "--user-agent", args[0])
	assert.Contains(t, userAgents, args[1])
	assert.Contains(t, args, "Referer:"+defaultReferer)
	assert.Contains(t, args, "Accept-Language:"+defaultAcceptLanguage)
}

func TestBypassSelector_CookieFileFallsBackToUserAgent(t *testing.T) {
	sel := newTestSelector(t)

	args := sel.Arguments(domain.StrategyCookieFile)
	assert.Equal(t, "--user-agent", args[0])

	cookieFile := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookieFile, []byte("# Netscape HTTP Cookie File\n"), 0644))
	sel.config.CookieFile = cookieFile

	assert.Equal(t, []string{"--cookies", cookieFile}, sel.Arguments(domain.StrategyCookieFile))
}

func TestBypassSelector_BrowserCookiesKeychainFallback(t *testing.T) {
	sel := newTestSelector(t)

	assert.Equal(t, []string{"--cookies-from-browser", "chrome"}, sel.Arguments(domain.StrategyBrowserCookies))

	sel.MarkKeychainDenied()
	assert.Equal(t, []string{"--cookies-from-browser", "firefox"}, sel.Arguments(domain.StrategyBrowserCookies))
}

func TestBypassSelector_DistinctBundles(t *testing.T) {
	sel := newTestSelector(t)

	assert.Contains(t, sel.Arguments(domain.StrategyRateLimit), "--sleep-requests")
	assert.Equal(t, []string{
		"--geo-bypass-country", "US",
		"--extractor-args", "youtube:player_skip=configs",
	}, sel.Arguments(domain.StrategyGeoBypass))
}
