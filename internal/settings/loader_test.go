package settings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

func openSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestRefreshDBConfigSnapshot(t *testing.T) {
	conn := openSettingsTestDB(t)

	row := models.Setting{Key: SiteNameKey, Value: []byte(`"Lumagen Lab"`), UpdatedAt: time.Now().UTC()}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed setting: %v", errCreate)
	}
	limit := models.Setting{Key: RateLimitKey, Value: []byte(`7`), UpdatedAt: time.Now().UTC()}
	if errCreate := conn.Create(&limit).Error; errCreate != nil {
		t.Fatalf("seed limit: %v", errCreate)
	}

	if errRefresh := RefreshDBConfigSnapshot(context.Background(), conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}

	if got := StringValue(SiteNameKey, "fallback"); got != "Lumagen Lab" {
		t.Fatalf("expected refreshed site name, got %q", got)
	}
	if got := IntValue(RateLimitKey, 0); got != 7 {
		t.Fatalf("expected refreshed rate limit 7, got %d", got)
	}
	if DBConfigUpdatedAt().IsZero() {
		t.Fatalf("expected non-zero snapshot timestamp")
	}
}

func TestRefreshDBConfigSnapshotNilDB(t *testing.T) {
	if errRefresh := RefreshDBConfigSnapshot(context.Background(), nil); errRefresh == nil {
		t.Fatalf("expected error for nil db")
	}
}
