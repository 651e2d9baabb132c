package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

// RefreshDBConfigSnapshot reloads every setting row into the in-memory
// snapshot. It must run once at startup; until then StringValue and
// IntValue only see their fallbacks. The periodic refresh loop calls it
// again afterwards so admin edits propagate within a minute.
func RefreshDBConfigSnapshot(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).Order("key ASC").Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}

	values := make(map[string]json.RawMessage, len(rows))
	var newest time.Time
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
		if row.UpdatedAt.After(newest) {
			newest = row.UpdatedAt
		}
	}

	StoreDBConfig(newest.UTC(), values)
	return nil
}
