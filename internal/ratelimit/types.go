// Package ratelimit enforces per-code request rate limits with a Redis
// backend and an in-memory fallback.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// KeyForCode builds the limiter key for one authorization code.
func KeyForCode(code string) string {
	if code == "" {
		return ""
	}
	return "code:" + code
}
