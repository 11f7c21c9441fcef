package github

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outgoing GitHub API calls and adapts concurrency to the
// remaining request budget reported by the API.
type RateLimiter interface {
	// Wait blocks until the next API call is allowed to proceed
	Wait(ctx context.Context) error
	// Update records the rate limit state from API response headers
	Update(remaining int, resetTime time.Time)
	// AcquireSlot acquires a concurrency slot for parallel operations
	AcquireSlot(ctx context.Context) error
	// ReleaseSlot releases a previously acquired concurrency slot
	ReleaseSlot()
	// ConcurrencyLimit returns the current concurrency limit
	ConcurrencyLimit() int
	// Stats returns current rate limiter statistics
	Stats() RateLimiterStats
}

// RateLimiterConfig holds configuration for the adaptive rate limiter
type RateLimiterConfig struct {
	// BaseDelay is the minimum spacing between API calls
	BaseDelay time.Duration
	// MaxDelay is the maximum delay between API calls
	MaxDelay time.Duration
	// BackoffFactor multiplies the delay when the remaining budget shrinks
	BackoffFactor float64
	// Jitter adds randomness to delays to avoid thundering herd (0.0-1.0)
	Jitter float64
	// ConcurrencyLimit is the initial number of concurrent operations
	ConcurrencyLimit int
	// MinRemainingRequests triggers aggressive throttling when the budget drops below it
	MinRemainingRequests int
	// AggressiveThrottleDelay is the maximum delay applied near budget exhaustion
	AggressiveThrottleDelay time.Duration
	// AdaptiveConcurrency enables dynamic adjustment of the concurrency limit
	AdaptiveConcurrency bool
	// MinConcurrency is the lower bound for adaptive concurrency
	MinConcurrency int
	// MaxConcurrency is the upper bound for adaptive concurrency
	MaxConcurrency int
}

// DefaultRateLimiterConfig returns sensible defaults for GitHub API usage
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		BaseDelay:               100 * time.Millisecond,
		MaxDelay:                30 * time.Second,
		BackoffFactor:           2.0,
		Jitter:                  0.1,
		ConcurrencyLimit:        5,
		MinRemainingRequests:    100,
		AggressiveThrottleDelay: 2 * time.Second,
		AdaptiveConcurrency:     true,
		MinConcurrency:          1,
		MaxConcurrency:          20,
	}
}

// RateLimiterStats provides statistics about rate limiter behavior
type RateLimiterStats struct {
	TotalRequests      int64         `json:"total_requests"`
	ThrottledRequests  int64         `json:"throttled_requests"`
	CurrentDelay       time.Duration `json:"current_delay"`
	RemainingRequests  int           `json:"remaining_requests"`
	ResetTime          time.Time     `json:"reset_time"`
	ConcurrencyLimit   int           `json:"concurrency_limit"`
	ActiveRequests     int           `json:"active_requests"`
	AdaptiveAdjustment int64         `json:"adaptive_adjustments"`
}

type adaptiveRateLimiter struct {
	config    RateLimiterConfig
	pacer     *rate.Limiter
	mu        sync.RWMutex
	remaining int
	resetTime time.Time
	semaphore chan struct{}
	stats     RateLimiterStats
	rand      *rand.Rand
}

// NewRateLimiter creates a new adaptive rate limiter
func NewRateLimiter(config RateLimiterConfig) RateLimiter {
	if config.ConcurrencyLimit <= 0 {
		config.ConcurrencyLimit = 1
	}
	return &adaptiveRateLimiter{
		config:    config,
		pacer:     rate.NewLimiter(rate.Every(config.BaseDelay), 1),
		remaining: 5000,
		semaphore: make(chan struct{}, config.ConcurrencyLimit),
		stats: RateLimiterStats{
			ConcurrencyLimit: config.ConcurrencyLimit,
		},
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until the next API call is allowed to proceed
func (rl *adaptiveRateLimiter) Wait(ctx context.Context) error {
	// Base pacing between calls
	if err := rl.pacer.Wait(ctx); err != nil {
		return err
	}

	rl.mu.Lock()
	delay := rl.throttleDelay()
	rl.stats.TotalRequests++
	if delay > 0 {
		rl.stats.ThrottledRequests++
	}
	rl.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Update records the rate limit state from API response headers
func (rl *adaptiveRateLimiter) Update(remaining int, resetTime time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.remaining = remaining
	rl.resetTime = resetTime
	rl.stats.RemainingRequests = remaining
	rl.stats.ResetTime = resetTime

	if rl.config.AdaptiveConcurrency {
		rl.adjustConcurrency()
	}
}

// AcquireSlot acquires a concurrency slot for parallel operations
func (rl *adaptiveRateLimiter) AcquireSlot(ctx context.Context) error {
	rl.mu.RLock()
	semaphore := rl.semaphore
	rl.mu.RUnlock()

	select {
	case semaphore <- struct{}{}:
		rl.mu.Lock()
		rl.stats.ActiveRequests++
		rl.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReleaseSlot releases a previously acquired concurrency slot
func (rl *adaptiveRateLimiter) ReleaseSlot() {
	rl.mu.Lock()
	semaphore := rl.semaphore
	if rl.stats.ActiveRequests > 0 {
		rl.stats.ActiveRequests--
	}
	rl.mu.Unlock()

	select {
	case <-semaphore:
	default:
	}
}

// ConcurrencyLimit returns the current concurrency limit
func (rl *adaptiveRateLimiter) ConcurrencyLimit() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.stats.ConcurrencyLimit
}

// Stats returns current rate limiter statistics
func (rl *adaptiveRateLimiter) Stats() RateLimiterStats {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	stats := rl.stats
	stats.CurrentDelay = rl.throttleDelay()
	return stats
}

// throttleDelay computes the extra delay beyond base pacing, based on the
// remaining request budget. Caller must hold at least a read lock.
func (rl *adaptiveRateLimiter) throttleDelay() time.Duration {
	now := time.Now()

	// Budget refreshed, no throttling needed
	if !rl.resetTime.IsZero() && now.After(rl.resetTime) {
		return 0
	}

	var delay time.Duration

	// Aggressive throttling when remaining requests are low
	if rl.remaining < rl.config.MinRemainingRequests {
		delay = rl.aggressiveDelay()
	}

	// Exponential backoff when below 10% of the default hourly limit
	if rl.remaining < 500 {
		backoffMultiplier := math.Pow(rl.config.BackoffFactor, float64(5000-rl.remaining)/1000)
		backoffDelay := time.Duration(float64(rl.config.BaseDelay) * backoffMultiplier)
		if backoffDelay > delay {
			delay = backoffDelay
		}
	}

	// Jitter to avoid thundering herd
	if rl.config.Jitter > 0 && delay > 0 {
		jitterAmount := float64(delay) * rl.config.Jitter
		delay += time.Duration(rl.rand.Float64() * jitterAmount)
	}

	if delay > rl.config.MaxDelay {
		delay = rl.config.MaxDelay
	}
	return delay
}

// aggressiveDelay scales the throttle delay inversely with the remaining budget
func (rl *adaptiveRateLimiter) aggressiveDelay() time.Duration {
	if rl.remaining <= 0 {
		if waitTime := time.Until(rl.resetTime); waitTime > 0 {
			return waitTime
		}
		return 0
	}

	remainingRatio := float64(rl.remaining) / float64(rl.config.MinRemainingRequests)
	if remainingRatio >= 1.0 {
		return 0
	}

	// Fewer remaining requests means a longer delay
	return time.Duration(float64(rl.config.AggressiveThrottleDelay) * (1.0 - remainingRatio))
}

// adjustConcurrency resizes the concurrency limit based on the remaining
// budget. Caller must hold the write lock.
func (rl *adaptiveRateLimiter) adjustConcurrency() {
	var newLimit int
	switch {
	case rl.remaining > 2000:
		newLimit = rl.config.MaxConcurrency
	case rl.remaining > 1000:
		newLimit = (rl.config.MaxConcurrency + rl.config.MinConcurrency) / 2
	case rl.remaining > 500:
		newLimit = rl.config.MinConcurrency + 2
	default:
		newLimit = rl.config.MinConcurrency
	}

	if newLimit < rl.config.MinConcurrency {
		newLimit = rl.config.MinConcurrency
	}
	if newLimit > rl.config.MaxConcurrency {
		newLimit = rl.config.MaxConcurrency
	}

	if newLimit != rl.stats.ConcurrencyLimit {
		rl.semaphore = make(chan struct{}, newLimit)
		rl.stats.ConcurrencyLimit = newLimit
		rl.stats.AdaptiveAdjustment++
		rl.stats.ActiveRequests = 0
	}
}
