package authcode

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	dbutil "github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/models"
)

func openRegistryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:registry_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestLookupPreloadsTeam(t *testing.T) {
	conn := openRegistryTestDB(t)
	team := models.Team{Name: "design", Credits: 50}
	if errTeam := conn.Create(&team).Error; errTeam != nil {
		t.Fatalf("create team: %v", errTeam)
	}
	code := models.AuthCode{Code: "lg_TEAMED", Credits: 5, Status: models.AuthCodeStatusActive, TeamID: &team.ID}
	if errCode := conn.Create(&code).Error; errCode != nil {
		t.Fatalf("create code: %v", errCode)
	}

	got, errLookup := NewRegistry(conn).Lookup(context.Background(), "lg_TEAMED")
	if errLookup != nil {
		t.Fatalf("lookup: %v", errLookup)
	}
	if got.Team == nil || got.Team.Name != "design" || got.Team.Credits != 50 {
		t.Fatalf("expected preloaded team, got %+v", got.Team)
	}
}

func TestLookupUnknownCode(t *testing.T) {
	conn := openRegistryTestDB(t)
	if _, errLookup := NewRegistry(conn).Lookup(context.Background(), "lg_NOPE"); !errors.Is(errLookup, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", errLookup)
	}
	if _, errLookup := NewRegistry(conn).Lookup(context.Background(), "   "); !errors.Is(errLookup, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound for blank code, got %v", errLookup)
	}
}

func TestLookupPersistsExpiryTransition(t *testing.T) {
	conn := openRegistryTestDB(t)
	past := time.Now().UTC().Add(-time.Hour)
	code := models.AuthCode{Code: "lg_OLD", Status: models.AuthCodeStatusActive, ExpireTime: &past}
	if errCode := conn.Create(&code).Error; errCode != nil {
		t.Fatalf("create code: %v", errCode)
	}

	got, errLookup := NewRegistry(conn).Lookup(context.Background(), "lg_OLD")
	if errLookup != nil {
		t.Fatalf("lookup: %v", errLookup)
	}
	if got.Status != models.AuthCodeStatusExpired {
		t.Fatalf("expected in-memory status expired, got %s", got.Status)
	}

	var stored models.AuthCode
	if errFind := conn.Where("code = ?", "lg_OLD").First(&stored).Error; errFind != nil {
		t.Fatalf("reload code: %v", errFind)
	}
	if stored.Status != models.AuthCodeStatusExpired {
		t.Fatalf("expected persisted status expired, got %s", stored.Status)
	}
}

func TestRequireActive(t *testing.T) {
	conn := openRegistryTestDB(t)
	registry := NewRegistry(conn)
	future := time.Now().UTC().Add(time.Hour)
	past := time.Now().UTC().Add(-time.Hour)

	seed := []models.AuthCode{
		{Code: "lg_ACTIVE", Status: models.AuthCodeStatusActive, ExpireTime: &future},
		{Code: "lg_FOREVER", Status: models.AuthCodeStatusActive},
		{Code: "lg_EXPIRED", Status: models.AuthCodeStatusActive, ExpireTime: &past},
		{Code: "lg_DISABLED", Status: models.AuthCodeStatusDisabled},
	}
	for i := range seed {
		if errCode := conn.Create(&seed[i]).Error; errCode != nil {
			t.Fatalf("create code %s: %v", seed[i].Code, errCode)
		}
	}

	if _, errActive := registry.RequireActive(context.Background(), "lg_ACTIVE"); errActive != nil {
		t.Fatalf("active code rejected: %v", errActive)
	}
	if _, errForever := registry.RequireActive(context.Background(), "lg_FOREVER"); errForever != nil {
		t.Fatalf("non-expiring code rejected: %v", errForever)
	}
	if _, errExpired := registry.RequireActive(context.Background(), "lg_EXPIRED"); !errors.Is(errExpired, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", errExpired)
	}
	if _, errDisabled := registry.RequireActive(context.Background(), "lg_DISABLED"); !errors.Is(errDisabled, ErrCodeDisabled) {
		t.Fatalf("expected ErrCodeDisabled, got %v", errDisabled)
	}
}
