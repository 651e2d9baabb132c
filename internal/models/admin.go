package models

import "time"

// Admin is a dashboard administrator account.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Login name.
	Password string `gorm:"type:text;not null"`             // bcrypt password hash.
	Active   bool   `gorm:"not null;default:true"`          // Whether login is allowed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
