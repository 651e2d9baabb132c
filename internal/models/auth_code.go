package models

import "time"

// Authorization code statuses.
const (
	// AuthCodeStatusActive marks a usable authorization code.
	AuthCodeStatusActive = "active"
	// AuthCodeStatusExpired marks a code past its expiry time.
	AuthCodeStatusExpired = "expired"
	// AuthCodeStatusDisabled marks an administratively disabled code.
	AuthCodeStatusDisabled = "disabled"
)

// Team roles an authorization code can hold within its team.
const (
	// TeamRoleAdmin may manage the team it belongs to.
	TeamRoleAdmin = "admin"
	// TeamRoleMember is a regular team member.
	TeamRoleMember = "member"
)

// AuthCode represents one issued access credential and its personal credit pool.
type AuthCode struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code    string `gorm:"type:text;not null;uniqueIndex"` // Unique credential string.
	Credits int64  `gorm:"not null;default:0"`             // Personal credit balance.

	ExpireTime *time.Time // Expiry, nil means never expires.
	Status     string     `gorm:"type:varchar(20);not null;default:'active';index"` // Stored status.

	TeamID   *uint64 `gorm:"index"`                                  // Owning team ID, if any.
	Team     *Team   `gorm:"foreignKey:TeamID"`                      // Owning team record.
	TeamRole string  `gorm:"type:varchar(20);not null;default:'member'"` // Role within the team.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsEffectivelyActive reports whether the code is usable at the given time.
// A code is active only when its stored status is active and it has not
// passed its expiry.
func (a *AuthCode) IsEffectivelyActive(now time.Time) bool {
	if a == nil || a.Status != AuthCodeStatusActive {
		return false
	}
	if a.ExpireTime != nil && !a.ExpireTime.After(now) {
		return false
	}
	return true
}
