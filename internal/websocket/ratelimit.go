package websocket

import (
	"sync"
	"time"
)

// Per-minute budgets for the chatty RPCs. SendMessage is deliberately
// uncapped here; it is bounded by persistence latency.
type RateLimits struct {
	MaxTypingCalls int
	MaxReadCalls   int
}

var DefaultRateLimits = RateLimits{
	MaxTypingCalls: 60,
	MaxReadCalls:   120,
}

// connRateLimiter is a per-connection token bucket refilled once a minute.
type connRateLimiter struct {
	mu           sync.Mutex
	typingTokens int
	readTokens   int
	lastRefill   time.Time
}

func newConnRateLimiter() *connRateLimiter {
	return &connRateLimiter{
		typingTokens: DefaultRateLimits.MaxTypingCalls,
		readTokens:   DefaultRateLimits.MaxReadCalls,
		lastRefill:   time.Now(),
	}
}

func (rl *connRateLimiter) Allow(method string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastRefill) >= time.Minute {
		rl.typingTokens = DefaultRateLimits.MaxTypingCalls
		rl.readTokens = DefaultRateLimits.MaxReadCalls
		rl.lastRefill = time.Now()
	}

	switch method {
	case MethodSendTypingIndicator:
		if rl.typingTokens > 0 {
			rl.typingTokens--
			return true
		}
	case MethodMarkAsRead:
		if rl.readTokens > 0 {
			rl.readTokens--
			return true
		}
	default:
		return true
	}
	return false
}
