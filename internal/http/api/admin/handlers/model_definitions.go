package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

// ModelDefinitionHandler manages the model catalog and its pricing.
type ModelDefinitionHandler struct {
	db *gorm.DB
}

// NewModelDefinitionHandler constructs a ModelDefinitionHandler.
func NewModelDefinitionHandler(db *gorm.DB) *ModelDefinitionHandler {
	return &ModelDefinitionHandler{db: db}
}

// List returns every model definition, active or not.
func (h *ModelDefinitionHandler) List(c *gin.Context) {
	var rows []models.ModelDefinition
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("media_type ASC, name ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load models"})
		return
	}
	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, modelView(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// createModelRequest is the POST payload.
type createModelRequest struct {
	Name               string `json:"name" binding:"required"`
	DisplayName        string `json:"display_name"`
	MediaType          string `json:"media_type"`
	CreditsPerUse      int64  `json:"credits_per_use"`
	DiscountCreditCost *int64 `json:"discount_credit_cost"`
	IsFreeToUse        bool   `json:"is_free_to_use"`
	IsActive           *bool  `json:"is_active"`
}

// Create adds a new model definition.
func (h *ModelDefinitionHandler) Create(c *gin.Context) {
	var req createModelRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	mediaType := req.MediaType
	if mediaType != models.MediaTypeVideo {
		mediaType = models.MediaTypeImage
	}
	if req.CreditsPerUse < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credits_per_use must not be negative"})
		return
	}

	row := models.ModelDefinition{
		Name:               name,
		DisplayName:        req.DisplayName,
		MediaType:          mediaType,
		CreditsPerUse:      req.CreditsPerUse,
		DiscountCreditCost: req.DiscountCreditCost,
		IsFreeToUse:        req.IsFreeToUse,
		IsActive:           true,
	}
	if req.IsActive != nil {
		row.IsActive = *req.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "model name already exists"})
		return
	}
	c.JSON(http.StatusOK, modelView(row))
}

// updateModelRequest is the PUT payload. ClearDiscount removes any discount
// without touching the base price.
type updateModelRequest struct {
	DisplayName        *string `json:"display_name"`
	CreditsPerUse      *int64  `json:"credits_per_use"`
	DiscountCreditCost *int64  `json:"discount_credit_cost"`
	ClearDiscount      bool    `json:"clear_discount"`
	IsFreeToUse        *bool   `json:"is_free_to_use"`
	IsActive           *bool   `json:"is_active"`
}

// Update changes a model's pricing or availability.
func (h *ModelDefinitionHandler) Update(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}

	var req updateModelRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.CreditsPerUse != nil {
		if *req.CreditsPerUse < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credits_per_use must not be negative"})
			return
		}
		updates["credits_per_use"] = *req.CreditsPerUse
	}
	if req.ClearDiscount {
		updates["discount_credit_cost"] = nil
	} else if req.DiscountCreditCost != nil {
		updates["discount_credit_cost"] = *req.DiscountCreditCost
	}
	if req.IsFreeToUse != nil {
		updates["is_free_to_use"] = *req.IsFreeToUse
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.ModelDefinition{}).
		Where("id = ?", row.ID).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update model"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *ModelDefinitionHandler) load(c *gin.Context) (*models.ModelDefinition, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return nil, false
	}
	var row models.ModelDefinition
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load model"})
		return nil, false
	}
	return &row, true
}

func modelView(row models.ModelDefinition) gin.H {
	view := gin.H{
		"id":              row.ID,
		"name":            row.Name,
		"display_name":    row.DisplayName,
		"media_type":      row.MediaType,
		"credits_per_use": row.CreditsPerUse,
		"is_free_to_use":  row.IsFreeToUse,
		"is_active":       row.IsActive,
	}
	if row.DiscountCreditCost != nil {
		view["discount_credit_cost"] = *row.DiscountCreditCost
	}
	return view
}
