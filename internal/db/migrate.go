package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumagen/lumagen/internal/models"
	internalsettings "github.com/lumagen/lumagen/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// autoMigrateModels lists every model managed by AutoMigrate.
func autoMigrateModels() []any {
	return []any{
		&models.Admin{},
		&models.Team{},
		&models.AuthCode{},
		&models.ModelDefinition{},
		&models.AssistantCategory{},
		&models.Assistant{},
		&models.FavoriteGroup{},
		&models.AssistantFavorite{},
		&models.AssistantComment{},
		&models.TemplateCase{},
		&models.GenerationRecord{},
		&models.CreditAdjustment{},
		&models.Setting{},
	}
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(autoMigrateModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureSettings(conn); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureAssistantCategories(conn); errSeed != nil {
		return errSeed
	}

	_ = conn.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error

	if errDDL := applyCommonIndexes(conn); errDDL != nil {
		return errDDL
	}

	// trgmIndex defines trigram and fallback index statements.
	type trgmIndex struct {
		name     string // Logical index name.
		trgmSQL  string // Trigram index SQL.
		lowerSQL string // Lowercase fallback index SQL.
	}
	trgmIndexes := []trgmIndex{
		{
			name: "idx_auth_codes_code",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_auth_codes_code_trgm
				ON auth_codes USING gin (code gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_auth_codes_code_lower
				ON auth_codes (LOWER(code))
			`,
		},
		{
			name: "idx_teams_name",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_teams_name_trgm
				ON teams USING gin (name gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_teams_name_lower
				ON teams (LOWER(name))
			`,
		},
		{
			name: "idx_assistants_title",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_assistants_title_trgm
				ON assistants USING gin (title gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_assistants_title_lower
				ON assistants (LOWER(title))
			`,
		},
	}
	for _, item := range trgmIndexes {
		if errIdx := conn.Exec(item.trgmSQL).Error; errIdx != nil {
			if errLower := conn.Exec(item.lowerSQL).Error; errLower != nil {
				return fmt.Errorf("db: create index %s: %w", item.name, errLower)
			}
		}
	}

	return nil
}

// migrateSQLite applies SQLite-specific schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(autoMigrateModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureSettings(conn); errSeed != nil {
		return errSeed
	}
	if errSeed := ensureAssistantCategories(conn); errSeed != nil {
		return errSeed
	}
	return applyCommonIndexes(conn)
}

// applyCommonIndexes creates indexes shared by both dialects.
func applyCommonIndexes(conn *gorm.DB) error {
	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_auth_codes_status_expire_time",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_auth_codes_status_expire_time
				ON auth_codes (status, expire_time)
			`,
		},
		{
			name: "idx_generation_records_auth_code_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_generation_records_auth_code_created_at
				ON generation_records (auth_code, created_at DESC)
			`,
		},
		{
			name: "idx_credit_adjustments_auth_code_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_credit_adjustments_auth_code_created_at
				ON credit_adjustments (auth_code, created_at DESC)
			`,
		},
		{
			name: "idx_credit_adjustments_team_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_credit_adjustments_team_id_created_at
				ON credit_adjustments (team_id, created_at DESC)
			`,
		},
		{
			name: "idx_model_definitions_active_name",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_model_definitions_active_name
				ON model_definitions (is_active, name)
			`,
		},
		{
			name: "idx_assistants_type_status_popularity",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_assistants_type_status_popularity
				ON assistants (type, status, popularity DESC)
			`,
		},
		{
			name: "idx_template_cases_category_popularity",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_template_cases_category_popularity
				ON template_cases (category, popularity DESC)
			`,
		},
		{
			name: "idx_assistant_comments_assistant_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_assistant_comments_assistant_id_created_at
				ON assistant_comments (assistant_id, created_at DESC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}
	return nil
}

// ensureSettings seeds DB-backed settings with defaults when missing.
func ensureSettings(conn *gorm.DB) error {
	if errEnsure := ensureStringSetting(conn, internalsettings.SiteNameKey, internalsettings.DefaultSiteName); errEnsure != nil {
		return errEnsure
	}
	if errEnsure := ensureStringSetting(conn, internalsettings.DefaultImageModelKey, internalsettings.DefaultImageModel); errEnsure != nil {
		return errEnsure
	}
	if errEnsure := ensureIntSetting(conn, internalsettings.RateLimitKey, internalsettings.DefaultRateLimit); errEnsure != nil {
		return errEnsure
	}
	if errEnsure := ensureIntSetting(
		conn,
		internalsettings.HistoryRetentionDaysKey,
		internalsettings.DefaultHistoryRetentionDays,
	); errEnsure != nil {
		return errEnsure
	}
	return nil
}

// ensureAssistantCategories seeds the marketplace category dictionary.
// Existing rows are never touched, so admins can rename freely.
func ensureAssistantCategories(conn *gorm.DB) error {
	builtin := []models.AssistantCategory{
		{Name: "Portrait", Slug: "portrait"},
		{Name: "Landscape", Slug: "landscape"},
		{Name: "Animals", Slug: "animals"},
		{Name: "Architecture", Slug: "architecture"},
		{Name: "Art", Slug: "art"},
		{Name: "Sci-Fi", Slug: "sci-fi"},
		{Name: "Cartoon", Slug: "cartoon"},
		{Name: "Other", Slug: "other"},
	}
	for _, category := range builtin {
		var existing models.AssistantCategory
		errFind := conn.Where("slug = ?", category.Slug).First(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: query %s category: %w", category.Slug, errFind)
		}
		if errCreate := conn.Create(&category).Error; errCreate != nil {
			return fmt.Errorf("db: create %s category: %w", category.Slug, errCreate)
		}
	}
	return nil
}

// ensureStringSetting ensures a string setting exists and defaults when empty.
func ensureStringSetting(conn *gorm.DB, key string, value string) error {
	return ensureJSONSetting(conn, key, value)
}

// ensureIntSetting ensures an integer setting exists and defaults when empty.
func ensureIntSetting(conn *gorm.DB, key string, value int) error {
	return ensureJSONSetting(conn, key, value)
}

// ensureJSONSetting ensures a setting exists and defaults when empty.
func ensureJSONSetting(conn *gorm.DB, key string, value any) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	rawValue := json.RawMessage(payload)

	var existing models.Setting
	if errFind := conn.Where("key = ?", key).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      rawValue,
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	setting := models.Setting{
		Key:       key,
		Value:     rawValue,
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
