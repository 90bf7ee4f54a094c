package landing

import (
	"sync"
	"time"
)

// TokenBucket rate limits backend writes. Sustained rate is ratePerSecond
// tokens per second with bursts up to burstCapacity; a rate of 0 or below
// disables limiting entirely.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	unlimited  bool
}

// NewTokenBucket creates a bucket that starts full.
func NewTokenBucket(ratePerSecond, burstCapacity int) *TokenBucket {
	if ratePerSecond <= 0 {
		return &TokenBucket{unlimited: true}
	}
	if burstCapacity < ratePerSecond {
		burstCapacity = ratePerSecond
	}
	return &TokenBucket{
		tokens:     float64(burstCapacity),
		maxTokens:  float64(burstCapacity),
		refillRate: float64(ratePerSecond),
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefill = now
}

// TryAcquire attempts to take n tokens without blocking.
func (tb *TokenBucket) TryAcquire(n int) bool {
	if tb.unlimited {
		return true
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// WaitAcquire blocks until n tokens are available and returns the time
// waited. Only the flush loop calls this, so blocking here delays future
// flush cycles but never producers.
func (tb *TokenBucket) WaitAcquire(n int) time.Duration {
	if tb.unlimited {
		return 0
	}

	start := time.Now()
	for {
		tb.mu.Lock()
		tb.refill()
		if tb.tokens >= float64(n) {
			tb.tokens -= float64(n)
			tb.mu.Unlock()
			return time.Since(start)
		}
		deficit := float64(n) - tb.tokens
		wait := time.Duration(deficit / tb.refillRate * float64(time.Second))
		tb.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		time.Sleep(wait)
	}
}

// IsUnlimited returns true if rate limiting is disabled.
func (tb *TokenBucket) IsUnlimited() bool {
	return tb.unlimited
}
