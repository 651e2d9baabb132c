package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "Lumagen"
	// DefaultImageModelKey is the DB config key for the fallback image model.
	DefaultImageModelKey = "DEFAULT_IMAGE_MODEL"
	// DefaultImageModel is the model used when a request names none.
	DefaultImageModel = "gemini-2.5-flash-image"
	// RateLimitKey controls per-code generation requests per second.
	RateLimitKey = "RATE_LIMIT"
	// DefaultRateLimit is the fallback generation rate limit (0 disables).
	DefaultRateLimit = 0
	// HistoryRetentionDaysKey controls generation history retention in days.
	HistoryRetentionDaysKey = "HISTORY_RETENTION_DAYS"
	// DefaultHistoryRetentionDays is the fallback retention window (0 keeps forever).
	DefaultHistoryRetentionDays = 0
)
