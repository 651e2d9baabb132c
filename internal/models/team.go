package models

import "time"

// Team is a shared credit pool drawn from by its member authorization codes.
type Team struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;uniqueIndex"` // Display name.
	Description string `gorm:"type:text"`                      // Optional description.
	Credits     int64  `gorm:"not null;default:0"`             // Shared credit balance.

	Members []AuthCode `gorm:"foreignKey:TeamID"` // Member authorization codes.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
