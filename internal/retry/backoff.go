package retry

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultBaseDelay = 100 * time.Millisecond
	DefaultMaxDelay  = 30 * time.Second
	DefaultJitterMin = 0.5
	DefaultJitterMax = 1.5

	// maxShift keeps 1<<attempt inside int64 for any realistic base delay.
	maxShift = 30
)

// BackoffConfig describes exponential backoff with multiplicative jitter.
type BackoffConfig struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	JitterMin float64
	JitterMax float64
}

// NewBackoffConfig creates a new backoff configuration with default values.
func NewBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
		JitterMin: DefaultJitterMin,
		JitterMax: DefaultJitterMax,
	}
}

// Calculate returns the delay before retry number attempt (0-based), never above MaxDelay.
func (c *BackoffConfig) Calculate(attempt int) time.Duration {
	shift := min(max(attempt, 0), maxShift)
	exponentialDelay := min(time.Duration(1<<shift)*c.BaseDelay, c.MaxDelay)

	jitter := c.JitterMin
	if c.JitterMax > c.JitterMin {
		jitter += rand.Float64() * (c.JitterMax - c.JitterMin)
	}
	return min(time.Duration(float64(exponentialDelay)*jitter), c.MaxDelay)
}
