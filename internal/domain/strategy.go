package domain

// Strategy names a bundle of request-shaping arguments for the extraction tool
type Strategy string

const (
	StrategyBrowserCookies Strategy = "browser_cookies"
	StrategyUserAgent      Strategy = "user_agent"
	StrategyCookieFile     Strategy = "cookie_file"
	StrategyRateLimit      Strategy = "rate_limit"
	StrategyGeoBypass      Strategy = "geo_bypass"
)

// StrategyCycle is the rotation order. Advancing past the last entry wraps
// to the first.
var StrategyCycle = []Strategy{
	StrategyBrowserCookies,
	StrategyUserAgent,
	StrategyCookieFile,
	StrategyRateLimit,
	StrategyGeoBypass,
}

// ValidateStrategy checks if a strategy name is known
func ValidateStrategy(s Strategy) bool {
	for _, known := range StrategyCycle {
		if s == known {
			return true
		}
	}
	return false
}

// NextStrategy returns the cyclic successor of s. Unknown values restart the cycle.
func NextStrategy(s Strategy) Strategy {
	for i, known := range StrategyCycle {
		if s == known {
			return StrategyCycle[(i+1)%len(StrategyCycle)]
		}
	}
	return StrategyCycle[0]
}

// BypassState tracks the strategy and retry counter of a single request
type BypassState struct {
	Strategy   Strategy
	Retries    int
	MaxRetries int
}

// NewBypassState starts a request on the given strategy
func NewBypassState(start Strategy, maxRetries int) *BypassState {
	return &BypassState{Strategy: start, MaxRetries: maxRetries}
}

// CanRetry reports whether another attempt is allowed
func (b *BypassState) CanRetry() bool {
	return b.Retries < b.MaxRetries
}

// Advance moves to the next strategy and consumes one retry
func (b *BypassState) Advance() Strategy {
	b.Retries++
	b.Strategy = NextStrategy(b.Strategy)
	return b.Strategy
}

// Reset clears the retry counter after a terminal outcome
func (b *BypassState) Reset() {
	b.Retries = 0
}

// Attempt is the 1-based number of the current attempt
func (b *BypassState) Attempt() int {
	return b.Retries + 1
}
