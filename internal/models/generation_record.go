package models

import (
	"time"

	"gorm.io/datatypes"
)

// Generation record statuses.
const (
	// GenerationStatusCompleted marks a delivered generation.
	GenerationStatusCompleted = "completed"
	// GenerationStatusFailed marks a generation whose provider call failed.
	GenerationStatusFailed = "failed"
)

// GenerationRecord is the audit log entry for one generation request.
type GenerationRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GenerationID string `gorm:"type:text;not null;uniqueIndex"` // External request identifier.
	AuthCode     string `gorm:"type:text;not null;index"`       // Requesting authorization code.

	ModuleName string `gorm:"type:text;not null"`                        // Requesting feature module.
	MediaType  string `gorm:"type:varchar(20);not null;default:'image'"` // Output media type.
	ModelName  string `gorm:"type:text;not null"`                        // Model used.

	PromptText   string         `gorm:"type:text;not null"` // Prompt sent to the provider.
	InputImages  datatypes.JSON `gorm:"type:jsonb"`         // Input artifact keys.
	OutputImages datatypes.JSON `gorm:"type:jsonb"`         // Output artifact keys.
	OutputCount  int            `gorm:"not null;default:1"` // Requested output count.

	CreditsUsed  int64  `gorm:"not null;default:0"`                           // Credits deducted for this generation.
	ProcessingMS int64  `gorm:"not null;default:0"`                           // Provider call duration in milliseconds.
	Status       string `gorm:"type:varchar(20);not null;default:'completed'"` // Outcome status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// CreditAdjustment records one signed balance mutation for audit purposes.
// Deductions write negative amounts; administrative top-ups write positive.
type CreditAdjustment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	AuthCode string  `gorm:"type:text;index"` // Affected authorization code, empty for pure team mutations.
	TeamID   *uint64 `gorm:"index"`           // Affected team, if the team pool moved.

	Amount int64  `gorm:"not null"`  // Signed credit delta.
	Reason string `gorm:"type:text"` // Human-readable cause.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
