package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often stale per-code windows are dropped.
const sweepInterval = 60

// codeWindow tracks request hits for one authorization code inside a
// single one-second window.
type codeWindow struct {
	sec  int64
	hits int
}

// MemoryLimiter counts requests per authorization code in one-second
// fixed windows. It is the fallback backend when Redis is not
// configured or unreachable.
type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]codeWindow
	nextSweep int64
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string]codeWindow)}
}

// Allow checks whether the request should be allowed in the current second.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(sec)

	window := l.windows[key]
	if window.sec != sec {
		window = codeWindow{sec: sec}
	}
	if window.hits >= limit {
		l.windows[key] = window
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	window.hits++
	l.windows[key] = window
	return Result{Allowed: true, Remaining: limit - window.hits, Reset: reset}, nil
}

// sweep drops windows for codes that have gone idle, so a burst of
// one-off codes does not pin memory forever. Caller holds the lock.
func (l *MemoryLimiter) sweep(sec int64) {
	if sec < l.nextSweep {
		return
	}
	l.nextSweep = sec + sweepInterval
	for key, window := range l.windows {
		if window.sec != sec {
			delete(l.windows, key)
		}
	}
}
