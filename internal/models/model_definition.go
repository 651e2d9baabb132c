package models

import "time"

// Media types a model can produce.
const (
	// MediaTypeImage marks image-producing models.
	MediaTypeImage = "image"
	// MediaTypeVideo marks video-producing models.
	MediaTypeVideo = "video"
)

// ModelDefinition describes a callable generation model and its pricing.
type ModelDefinition struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;uniqueIndex"`                  // Unique model identifier.
	DisplayName string `gorm:"type:text"`                                       // Human-readable name.
	MediaType   string `gorm:"type:varchar(20);not null;default:'image';index"` // Output media type.

	CreditsPerUse      int64  `gorm:"not null;default:0"` // Base credits per generated output.
	DiscountCreditCost *int64 // Discounted unit cost, overrides base when set.
	IsFreeToUse        bool   `gorm:"not null;default:false"` // Overrides all costs when true.

	IsActive bool `gorm:"not null;default:true;index"` // Whether the model is callable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
