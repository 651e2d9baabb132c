package ratelimit

import (
	"strings"

	"github.com/lumagen/lumagen/internal/config"
	"github.com/lumagen/lumagen/internal/settings"
)

// SettingsConfig is the resolved rate limit configuration for one check.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisPrefix   string
	RedisDB       int
}

// NewSettingsProvider builds a provider that merges the per-second limit
// from the settings snapshot with static Redis connection config.
func NewSettingsProvider(redisCfg config.RedisConfig) SettingsProvider {
	addr := strings.TrimSpace(redisCfg.Addr)
	return func() SettingsConfig {
		return SettingsConfig{
			Limit:         settings.IntValue(settings.RateLimitKey, settings.DefaultRateLimit),
			RedisEnabled:  addr != "",
			RedisAddr:     addr,
			RedisPassword: redisCfg.Password,
			RedisPrefix:   "lumagen:rl",
			RedisDB:       redisCfg.DB,
		}
	}
}
