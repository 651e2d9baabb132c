package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestRedisLimiterWindowKey(t *testing.T) {
	limiter := NewRedisLimiter(nil, "")
	key := limiter.windowKey(KeyForCode("lg_ABC"), 1234)
	if key != "lumagen:ratelimit:code:lg_ABC:1234" {
		t.Fatalf("unexpected default key %q", key)
	}

	limiter = NewRedisLimiter(nil, "staging")
	key = limiter.windowKey(KeyForCode("lg_ABC"), 1234)
	if key != "staging:ratelimit:code:lg_ABC:1234" {
		t.Fatalf("unexpected prefixed key %q", key)
	}
}

func TestRedisLimiterNilClientAllows(t *testing.T) {
	limiter := NewRedisLimiter(nil, "")
	result, errAllow := limiter.Allow(context.Background(), KeyForCode("lg_NIL"), 3, time.Now())
	if errAllow != nil || !result.Allowed {
		t.Fatalf("nil client must allow, got %v %v", result, errAllow)
	}
}
