package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the loader.
const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvDBConnection   = "DB_CONNECTION"
	EnvJWTSecret      = "JWT_SECRET"
	EnvJWTExpiry      = "JWT_EXPIRY"
	EnvProviderAPIKey = "PROVIDER_API_KEY"
	EnvProviderURL    = "PROVIDER_BASE_URL"
	EnvRedisAddr      = "REDIS_ADDR"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// DatabaseConfig holds the DSN and connection pool settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max-open-conns"`
	MaxIdleConns    int           `yaml:"max-idle-conns"`
	ConnMaxLifetime time.Duration `yaml:"conn-max-lifetime"`
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// ProviderConfig holds the upstream generation provider settings.
type ProviderConfig struct {
	BaseURL string        `yaml:"base-url"`
	APIKey  string        `yaml:"api-key"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig holds blob storage directories.
type StorageConfig struct {
	UploadDir string `yaml:"upload-dir"`
	OutputDir string `yaml:"output-dir"`
}

// LogConfig holds logging output settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// RedisConfig holds the optional Redis connection for rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoadDatabaseConfig reads the database DSN and pool settings from the
// YAML config file. The DB_CONNECTION env var overrides the DSN; pool
// fields stay zero when unset and the db package applies its defaults.
func LoadDatabaseConfig(configPath string) (DatabaseConfig, error) {
	// fileConfig maps the YAML fields needed for database settings.
	type fileConfig struct {
		DatabaseDSN string         `yaml:"database-dsn"`
		Database    DatabaseConfig `yaml:"database"`
	}

	var result DatabaseConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return DatabaseConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		result = cfg.Database
		result.DSN = strings.TrimSpace(result.DSN)
		if result.DSN == "" {
			result.DSN = strings.TrimSpace(cfg.DatabaseDSN)
		}
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		result.DSN = dsn
	}
	if result.DSN == "" {
		if errRead != nil {
			return DatabaseConfig{}, fmt.Errorf("read config file: %w", errRead)
		}
		return DatabaseConfig{}, ErrMissingDatabaseDSN
	}
	return result, nil
}

// LoadDatabaseDSN reads just the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	cfg, err := LoadDatabaseConfig(configPath)
	if err != nil {
		return "", err
	}
	return cfg.DSN, nil
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// defaultProviderTimeout bounds each upstream generation call.
const defaultProviderTimeout = 120 * time.Second

// defaultProviderBaseURL is the fallback OpenAI-compatible endpoint.
const defaultProviderBaseURL = "https://aihubmix.com/v1"

// LoadProviderConfig loads generation provider settings from the config file.
func LoadProviderConfig(configPath string) (ProviderConfig, error) {
	// fileConfig maps the YAML fields needed for provider settings.
	type fileConfig struct {
		Provider ProviderConfig `yaml:"provider"`
	}

	result := ProviderConfig{BaseURL: defaultProviderBaseURL, Timeout: defaultProviderTimeout}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			if strings.TrimSpace(cfg.Provider.BaseURL) != "" {
				result.BaseURL = strings.TrimSpace(cfg.Provider.BaseURL)
			}
			if strings.TrimSpace(cfg.Provider.APIKey) != "" {
				result.APIKey = strings.TrimSpace(cfg.Provider.APIKey)
			}
			if cfg.Provider.Timeout > 0 {
				result.Timeout = cfg.Provider.Timeout
			}
		}
	}

	if apiKey := strings.TrimSpace(os.Getenv(EnvProviderAPIKey)); apiKey != "" {
		result.APIKey = apiKey
	}
	if baseURL := strings.TrimSpace(os.Getenv(EnvProviderURL)); baseURL != "" {
		result.BaseURL = baseURL
	}
	return result, nil
}

// LoadStorageConfig loads blob storage directories from the config file.
func LoadStorageConfig(configPath string) (StorageConfig, error) {
	// fileConfig maps the YAML fields needed for storage settings.
	type fileConfig struct {
		Storage StorageConfig `yaml:"storage"`
	}

	result := StorageConfig{UploadDir: "./uploads", OutputDir: "./outputs"}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			if strings.TrimSpace(cfg.Storage.UploadDir) != "" {
				result.UploadDir = strings.TrimSpace(cfg.Storage.UploadDir)
			}
			if strings.TrimSpace(cfg.Storage.OutputDir) != "" {
				result.OutputDir = strings.TrimSpace(cfg.Storage.OutputDir)
			}
		}
	}
	return result, nil
}

// LoadLogConfig loads logging settings from the config file.
func LoadLogConfig(configPath string) (LogConfig, error) {
	// fileConfig maps the YAML fields needed for logging settings.
	type fileConfig struct {
		Log LogConfig `yaml:"log"`
	}

	result := LogConfig{Level: "info"}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			if strings.TrimSpace(cfg.Log.Level) != "" {
				result.Level = strings.TrimSpace(cfg.Log.Level)
			}
			result.File = strings.TrimSpace(cfg.Log.File)
			result.MaxSizeMB = cfg.Log.MaxSizeMB
			result.MaxBackups = cfg.Log.MaxBackups
			result.MaxAgeDays = cfg.Log.MaxAgeDays
		}
	}
	return result, nil
}

// LoadRedisConfig loads optional Redis settings from the config file.
func LoadRedisConfig(configPath string) (RedisConfig, error) {
	// fileConfig maps the YAML fields needed for Redis settings.
	type fileConfig struct {
		Redis RedisConfig `yaml:"redis"`
	}

	var result RedisConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Redis
		}
	}

	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		result.Addr = addr
	}
	return result, nil
}
