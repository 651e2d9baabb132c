package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestResolveConfigPathDefault(t *testing.T) {
	got := ResolveConfigPath("")
	if got == "" {
		t.Fatalf("expected non-empty default config path")
	}
	if !filepath.IsAbs(got) {
		t.Fatalf("expected absolute path, got %q", got)
	}
}

func TestLoadDatabaseDSNFromFlatKey(t *testing.T) {
	path := writeConfigFile(t, "database-dsn: \"file:test.db\"\n")
	dsn, err := LoadDatabaseDSN(path)
	if err != nil {
		t.Fatalf("LoadDatabaseDSN: %v", err)
	}
	if dsn != "file:test.db" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestLoadDatabaseDSNFromNestedKey(t *testing.T) {
	path := writeConfigFile(t, "database:\n  dsn: \"postgres://u:p@localhost/app\"\n")
	dsn, err := LoadDatabaseDSN(path)
	if err != nil {
		t.Fatalf("LoadDatabaseDSN: %v", err)
	}
	if dsn != "postgres://u:p@localhost/app" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}

func TestLoadDatabaseDSNEnvOverride(t *testing.T) {
	t.Setenv(EnvDBConnection, "file:env.db")
	path := writeConfigFile(t, "database-dsn: \"file:file.db\"\n")
	dsn, err := LoadDatabaseDSN(path)
	if err != nil {
		t.Fatalf("LoadDatabaseDSN: %v", err)
	}
	if dsn != "file:env.db" {
		t.Fatalf("expected env override, got %q", dsn)
	}
}

func TestLoadDatabaseConfigPoolSettings(t *testing.T) {
	path := writeConfigFile(t, "database:\n  dsn: \"file:pool.db\"\n  max-open-conns: 5\n  max-idle-conns: 2\n  conn-max-lifetime: 10m\n")
	cfg, err := LoadDatabaseConfig(path)
	if err != nil {
		t.Fatalf("LoadDatabaseConfig: %v", err)
	}
	if cfg.DSN != "file:pool.db" {
		t.Fatalf("unexpected dsn %q", cfg.DSN)
	}
	if cfg.MaxOpenConns != 5 || cfg.MaxIdleConns != 2 || cfg.ConnMaxLifetime != 10*time.Minute {
		t.Fatalf("unexpected pool settings: %+v", cfg)
	}
}

func TestLoadDatabaseConfigUnsetPoolStaysZero(t *testing.T) {
	path := writeConfigFile(t, "database-dsn: \"file:flat.db\"\n")
	cfg, err := LoadDatabaseConfig(path)
	if err != nil {
		t.Fatalf("LoadDatabaseConfig: %v", err)
	}
	if cfg.MaxOpenConns != 0 || cfg.MaxIdleConns != 0 || cfg.ConnMaxLifetime != 0 {
		t.Fatalf("pool settings must stay zero when unset: %+v", cfg)
	}
}

func TestLoadDatabaseDSNMissing(t *testing.T) {
	path := writeConfigFile(t, "jwt:\n  secret: x\n")
	if _, err := LoadDatabaseDSN(path); err == nil {
		t.Fatalf("expected error for missing dsn")
	}
}

func TestLoadJWTConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "jwt:\n  secret: topsecret\n")
	cfg, err := LoadJWTConfig(path)
	if err != nil {
		t.Fatalf("LoadJWTConfig: %v", err)
	}
	if cfg.Secret != "topsecret" {
		t.Fatalf("unexpected secret %q", cfg.Secret)
	}
	if cfg.Expiry != defaultJWTExpiry {
		t.Fatalf("expected default expiry, got %v", cfg.Expiry)
	}
}

func TestLoadJWTConfigEnvOverride(t *testing.T) {
	t.Setenv(EnvJWTSecret, "envsecret")
	t.Setenv(EnvJWTExpiry, "2h")
	path := writeConfigFile(t, "jwt:\n  secret: filesecret\n  expiry: 24h\n")
	cfg, err := LoadJWTConfig(path)
	if err != nil {
		t.Fatalf("LoadJWTConfig: %v", err)
	}
	if cfg.Secret != "envsecret" {
		t.Fatalf("expected env secret, got %q", cfg.Secret)
	}
	if cfg.Expiry != 2*time.Hour {
		t.Fatalf("expected 2h expiry, got %v", cfg.Expiry)
	}
}

func TestLoadProviderConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "provider:\n  api-key: k1\n")
	cfg, err := LoadProviderConfig(path)
	if err != nil {
		t.Fatalf("LoadProviderConfig: %v", err)
	}
	if cfg.APIKey != "k1" {
		t.Fatalf("unexpected api key %q", cfg.APIKey)
	}
	if cfg.BaseURL != defaultProviderBaseURL {
		t.Fatalf("expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != defaultProviderTimeout {
		t.Fatalf("expected default timeout, got %v", cfg.Timeout)
	}
}

func TestLoadStorageConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, "")
	cfg, err := LoadStorageConfig(path)
	if err != nil {
		t.Fatalf("LoadStorageConfig: %v", err)
	}
	if cfg.UploadDir != "./uploads" || cfg.OutputDir != "./outputs" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadLogConfig(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: debug\n  file: /var/log/app.log\n  max-size-mb: 100\n")
	cfg, err := LoadLogConfig(path)
	if err != nil {
		t.Fatalf("LoadLogConfig: %v", err)
	}
	if cfg.Level != "debug" || cfg.File != "/var/log/app.log" || cfg.MaxSizeMB != 100 {
		t.Fatalf("unexpected log config: %+v", cfg)
	}
}
