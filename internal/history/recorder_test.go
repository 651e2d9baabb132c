package history

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	dbutil "github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/models"
	internalsettings "github.com/lumagen/lumagen/internal/settings"
)

func openHistoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:history_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestRecordAndList(t *testing.T) {
	conn := openHistoryTestDB(t)
	recorder := NewRecorder(conn)

	for i := 0; i < 3; i++ {
		entry := Entry{
			GenerationID: fmt.Sprintf("gen-%d", i),
			AuthCode:     "lg_HIST",
			ModuleName:   "generate",
			ModelName:    "gemini-2.5-flash-image",
			PromptText:   "a cat",
			OutputImages: []string{fmt.Sprintf("out-%d.png", i)},
			OutputCount:  1,
			CreditsUsed:  8,
			ProcessingMS: 1200,
		}
		if errRecord := recorder.Record(context.Background(), entry); errRecord != nil {
			t.Fatalf("record %d: %v", i, errRecord)
		}
	}
	if errRecord := recorder.Record(context.Background(), Entry{
		GenerationID: "gen-other",
		AuthCode:     "lg_OTHER",
		ModuleName:   "generate",
		ModelName:    "gemini-2.5-flash-image",
	}); errRecord != nil {
		t.Fatalf("record other: %v", errRecord)
	}

	rows, total, errList := recorder.List(context.Background(), ListFilter{AuthCode: "lg_HIST"})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if total != 3 || len(rows) != 3 {
		t.Fatalf("expected 3 rows for lg_HIST, got total=%d len=%d", total, len(rows))
	}
	if rows[0].Status != models.GenerationStatusCompleted {
		t.Fatalf("expected default status completed, got %s", rows[0].Status)
	}
	if names := DecodeNames(rows[0].OutputImages); len(names) != 1 {
		t.Fatalf("expected decoded output names, got %v", names)
	}
}

func TestListFiltersByModule(t *testing.T) {
	conn := openHistoryTestDB(t)
	recorder := NewRecorder(conn)

	for _, module := range []string{"generate", "ai-edit", "generate"} {
		entry := Entry{
			GenerationID: fmt.Sprintf("gen-%s-%d", module, time.Now().UnixNano()),
			AuthCode:     "lg_MOD",
			ModuleName:   module,
			ModelName:    "gemini-2.5-flash-image",
		}
		if errRecord := recorder.Record(context.Background(), entry); errRecord != nil {
			t.Fatalf("record: %v", errRecord)
		}
	}

	_, total, errList := recorder.List(context.Background(), ListFilter{AuthCode: "lg_MOD", ModuleName: "ai-edit"})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if total != 1 {
		t.Fatalf("expected 1 ai-edit row, got %d", total)
	}
}

func TestRetentionCleanerDeletesOldRows(t *testing.T) {
	conn := openHistoryTestDB(t)

	old := models.GenerationRecord{GenerationID: "gen-old", AuthCode: "lg_R", ModuleName: "generate", ModelName: "m", PromptText: "p"}
	if errCreate := conn.Create(&old).Error; errCreate != nil {
		t.Fatalf("create old row: %v", errCreate)
	}
	cutoffBreaker := time.Now().UTC().AddDate(0, 0, -10)
	if errBackdate := conn.Model(&models.GenerationRecord{}).
		Where("generation_id = ?", "gen-old").
		Update("created_at", cutoffBreaker).Error; errBackdate != nil {
		t.Fatalf("backdate row: %v", errBackdate)
	}
	fresh := models.GenerationRecord{GenerationID: "gen-new", AuthCode: "lg_R", ModuleName: "generate", ModelName: "m", PromptText: "p"}
	if errCreate := conn.Create(&fresh).Error; errCreate != nil {
		t.Fatalf("create fresh row: %v", errCreate)
	}

	internalsettings.StoreDBConfig(time.Now().UTC(), map[string]json.RawMessage{
		internalsettings.HistoryRetentionDaysKey: json.RawMessage("7"),
	})
	t.Cleanup(func() {
		internalsettings.StoreDBConfig(time.Now().UTC(), map[string]json.RawMessage{})
	})

	cleaner := NewRetentionCleaner(conn)
	cleaner.cleanupOnce(context.Background())

	var count int64
	if errCount := conn.Model(&models.GenerationRecord{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count rows: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected only fresh row to survive, got %d rows", count)
	}
}

func TestRetentionCleanerDisabledByZeroDays(t *testing.T) {
	conn := openHistoryTestDB(t)

	row := models.GenerationRecord{GenerationID: "gen-keep", AuthCode: "lg_K", ModuleName: "generate", ModelName: "m"}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("create row: %v", errCreate)
	}
	if errBackdate := conn.Model(&models.GenerationRecord{}).
		Where("generation_id = ?", "gen-keep").
		Update("created_at", time.Now().UTC().AddDate(-1, 0, 0)).Error; errBackdate != nil {
		t.Fatalf("backdate row: %v", errBackdate)
	}

	internalsettings.StoreDBConfig(time.Now().UTC(), map[string]json.RawMessage{
		internalsettings.HistoryRetentionDaysKey: json.RawMessage("0"),
	})
	t.Cleanup(func() {
		internalsettings.StoreDBConfig(time.Now().UTC(), map[string]json.RawMessage{})
	})

	cleaner := NewRetentionCleaner(conn)
	cleaner.cleanupOnce(context.Background())

	var count int64
	if errCount := conn.Model(&models.GenerationRecord{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count rows: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("retention 0 must disable cleanup, got %d rows", count)
	}
}
