// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Limiter implements a per-key token bucket rate limiter.
// Each key gets its own bucket with the configured rate and burst.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow checks if a request for the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take consumes a token for key. When none is available it reports how long
// until one will be.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		// First request for this key: start with full burst
		b = &bucket{
			tokens:    float64(l.burst),
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	// Refill tokens based on elapsed time
	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += l.rate * elapsed
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
		b.lastCheck = now
	}

	if b.tokens < 1.0 {
		if l.rate <= 0 {
			return false, 0
		}
		return false, time.Duration((1.0 - b.tokens) / l.rate * float64(time.Second))
	}

	b.tokens--
	return true, 0
}

// ErrRateLimited matches every LimitError via errors.Is.
var ErrRateLimited = errors.New("rate limited")

// LimitError reports a rejected tool call. RetryAfter is zero when the
// limiter never refills.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("rate limit exceeded for %s, please try again shortly", e.Tool)
}

func (e *LimitError) Is(target error) bool { return target == ErrRateLimited }

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Read-only tools get generous limits. Tools that create records are tighter.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"darkforest_catalog":        NewLimiter(1.0, 10),      // 60/minute, burst 10
		"darkforest_session":        NewLimiter(1.0, 10),      // 60/minute, burst 10
		"darkforest_rooms":          NewLimiter(1.0, 10),      // 60/minute, burst 10
		"darkforest_start":          NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"darkforest_reset":          NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"darkforest_room_create":    NewLimiter(5.0/60.0, 2),  // 5/minute, burst 2
		"darkforest_room_join":      NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"darkforest_select_context": NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"darkforest_begin":          NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"darkforest_decide":         NewLimiter(1.0, 5),       // 60/minute, burst 5
		"darkforest_advance":        NewLimiter(1.0, 5),       // 60/minute, burst 5
		"darkforest_room_advance":   NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"darkforest_report":         NewLimiter(5.0/60.0, 2),  // 5/minute, burst 2
		"darkforest_stats":          NewLimiter(10.0/60.0, 5), // 10/minute, burst 5
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or a *LimitError if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil // No limiter configured = no limit
	}

	if ok, wait := limiter.take(toolName); !ok {
		return &LimitError{Tool: toolName, RetryAfter: wait}
	}

	return nil
}
