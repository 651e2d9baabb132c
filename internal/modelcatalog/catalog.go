// Package modelcatalog maintains the generation model registry.
package modelcatalog

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

// ErrModelNotFound indicates the requested model is unknown or inactive.
var ErrModelNotFound = errors.New("modelcatalog: model not found")

// Catalog resolves generation models against the database registry.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog creates a catalog bound to the given database handle.
func NewCatalog(conn *gorm.DB) *Catalog {
	return &Catalog{db: conn}
}

// builtinModels is the registry seeded at startup. Costs are per output.
var builtinModels = []models.ModelDefinition{
	{Name: "gemini-3-pro-image-preview", DisplayName: "NanoBananaPro", MediaType: models.MediaTypeImage, CreditsPerUse: 12, IsActive: true},
	{Name: "gemini-2.5-flash-image", DisplayName: "NanoBanana", MediaType: models.MediaTypeImage, CreditsPerUse: 8, IsActive: true},
	{Name: "gemini-2.5-flash-image-preview", DisplayName: "NanoBananaPreview", MediaType: models.MediaTypeImage, CreditsPerUse: 10, IsActive: true},
	{Name: "sora-2", DisplayName: "Sora 2", MediaType: models.MediaTypeVideo, CreditsPerUse: 40, IsActive: true},
	{Name: "veo-3.1-generate-preview", DisplayName: "Veo 3.1 Preview", MediaType: models.MediaTypeVideo, CreditsPerUse: 50, IsActive: true},
}

// Seed inserts any missing built-in models. Existing rows keep their
// admin-edited pricing and status; seeding never overwrites them.
func Seed(ctx context.Context, conn *gorm.DB) error {
	for _, builtin := range builtinModels {
		var existing models.ModelDefinition
		errFind := conn.WithContext(ctx).
			Where("name = ?", builtin.Name).
			First(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return errFind
		}
		row := builtin
		if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return errCreate
		}
		log.WithField("model", row.Name).Info("modelcatalog: seeded built-in model")
	}
	return nil
}

// LookupActive resolves a model by name, rejecting unknown or inactive ones.
func (c *Catalog) LookupActive(ctx context.Context, name string) (*models.ModelDefinition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrModelNotFound
	}
	var model models.ModelDefinition
	errFind := c.db.WithContext(ctx).
		Where("name = ? AND is_active = ?", name, true).
		First(&model).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, errFind
	}
	return &model, nil
}

// ListActive returns active models ordered by name.
func (c *Catalog) ListActive(ctx context.Context) ([]models.ModelDefinition, error) {
	var rows []models.ModelDefinition
	errFind := c.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&rows).Error
	if errFind != nil {
		return nil, errFind
	}
	return rows, nil
}
