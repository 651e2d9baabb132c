package models

import (
	"time"

	"gorm.io/datatypes"
)

// Assistant types and visibility values.
const (
	// AssistantTypeOfficial marks platform-curated presets.
	AssistantTypeOfficial = "official"
	// AssistantTypeCustom marks creator-owned presets.
	AssistantTypeCustom = "custom"
	// AssistantVisibilityPublic makes a custom assistant visible to everyone.
	AssistantVisibilityPublic = "public"
	// AssistantVisibilityPrivate restricts a custom assistant to its owner.
	AssistantVisibilityPrivate = "private"
	// AssistantStatusActive marks a listed assistant.
	AssistantStatusActive = "active"
	// AssistantStatusArchived removes an assistant from listings.
	AssistantStatusArchived = "archived"
)

// Assistant is a marketplace preset binding a prompt template to models.
type Assistant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Slug  string `gorm:"type:text;not null;uniqueIndex"` // URL-safe unique identifier.
	Title string `gorm:"type:text;not null"`             // Display title.

	Type       string `gorm:"type:varchar(20);not null;default:'official';index"` // official or custom.
	OwnerCode  string `gorm:"type:text;index"`                                    // Owning authorization code for custom assistants.
	Visibility string `gorm:"type:varchar(20);not null;default:'public'"`         // public or private.
	Status     string `gorm:"type:varchar(20);not null;default:'active';index"`   // active or archived.

	Description string         `gorm:"type:text"`          // Optional description.
	PromptText  string         `gorm:"type:text;not null"` // Prompt template.
	CoverImage  string         `gorm:"type:text"`          // Cover image storage key or URL.
	Tags        datatypes.JSON `gorm:"type:jsonb"`         // Free-form tag list.
	Popularity  int64          `gorm:"not null;default:0"` // Usage-driven ranking score.

	Categories []AssistantCategory `gorm:"many2many:assistant_category_links"` // Assigned categories.
	Models     []ModelDefinition   `gorm:"many2many:assistant_model_links"`    // Bound generation models.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// AssistantCategory is a marketplace category dictionary entry.
type AssistantCategory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null;uniqueIndex"` // Display name.
	Slug string `gorm:"type:text;not null;uniqueIndex"` // URL-safe identifier.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// AssistantFavorite marks an assistant favorited by an authorization code.
type AssistantFavorite struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AuthCode    string  `gorm:"type:text;not null;uniqueIndex:idx_assistant_favorites_code_assistant"` // Favoriting code.
	AssistantID uint64  `gorm:"not null;uniqueIndex:idx_assistant_favorites_code_assistant;index"`     // Favorited assistant.
	GroupID     *uint64 `gorm:"index"`                                                                 // Optional favorite group.

	Assistant *Assistant     `gorm:"foreignKey:AssistantID"` // Favorited assistant record.
	Group     *FavoriteGroup `gorm:"foreignKey:GroupID"`     // Assigned group, nil when ungrouped.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}

// AssistantComment is a user comment on a commentable assistant.
type AssistantComment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AssistantID uint64 `gorm:"not null;index"`     // Commented assistant.
	AuthCode    string `gorm:"type:text;not null"` // Commenting code.
	Content     string `gorm:"type:text;not null"` // Comment body.

	Assistant *Assistant `gorm:"foreignKey:AssistantID"` // Commented assistant record.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
