package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// RetryPolicy is exponential backoff with a cap. Attempts count the first call.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	wait := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= p.Multiplier
		if wait >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if wait > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(wait)
}

// BreakerPolicy trips a per-operation breaker once enough calls failed.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func (p BreakerPolicy) shouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests < p.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.FailureRatio
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// DefaultConfig suits slow model calls: few attempts, second-scale backoff,
// and a breaker that opens for a minute.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      5,
			FailureRatio:     0.6,
			OpenTimeout:      time.Minute,
			HalfOpenMaxCalls: 1,
		},
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	retry, breaker := c.Retry, c.Breaker

	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if retry.InitialBackoff < 0 {
		retry.InitialBackoff = def.Retry.InitialBackoff
	}
	if retry.MaxBackoff < retry.InitialBackoff {
		retry.MaxBackoff = retry.InitialBackoff
	}
	if retry.Multiplier < 1.0 {
		retry.Multiplier = def.Retry.Multiplier
	}

	if breaker.MinRequests == 0 {
		breaker.MinRequests = def.Breaker.MinRequests
	}
	if breaker.FailureRatio <= 0 || breaker.FailureRatio > 1 {
		breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if breaker.OpenTimeout <= 0 {
		breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if breaker.HalfOpenMaxCalls == 0 {
		breaker.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}

	return Config{Retry: retry, Breaker: breaker}
}
