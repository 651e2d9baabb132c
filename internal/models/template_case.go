package models

import (
	"time"

	"gorm.io/datatypes"
)

// Template case composition modes.
const (
	// CaseModeMulti marks cases composed from independent source images.
	CaseModeMulti = "multi"
	// CaseModePuzzle marks cases arranged on a collage canvas.
	CaseModePuzzle = "puzzle"
)

// TemplateCase is a curated gallery entry showing what a prompt and a
// set of input images can produce. Users browse cases for inspiration
// and reuse their prompts.
type TemplateCase struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Category string `gorm:"type:varchar(50);not null;index"`  // Display category.
	Title    string `gorm:"type:text;not null;uniqueIndex"`   // Display title.
	ModeType string `gorm:"type:varchar(20);not null;index"`  // multi or puzzle.

	Description  string         `gorm:"type:text"`          // Optional description.
	PreviewImage string         `gorm:"type:text"`          // Rendered result preview.
	InputImages  datatypes.JSON `gorm:"type:jsonb"`         // Example input image paths.
	PromptText   string         `gorm:"type:text;not null"` // Prompt that produced the preview.
	Tags         datatypes.JSON `gorm:"type:jsonb"`         // Free-form tag list.
	Popularity   int64          `gorm:"not null;default:0"` // Usage-driven ranking score.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// FavoriteGroup is a user-defined folder for favorited assistants. Names
// are unique per authorization code.
type FavoriteGroup struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AuthCode string `gorm:"type:text;not null;uniqueIndex:idx_favorite_groups_code_name"` // Owning code.
	Name     string `gorm:"type:text;not null;uniqueIndex:idx_favorite_groups_code_name"` // Display name.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
