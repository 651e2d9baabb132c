package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumagen/lumagen/internal/models"
)

// maxGroupNameLen caps favorite group names.
const maxGroupNameLen = 100

// FavoriteGroupsHandler manages per-code favorite folders.
type FavoriteGroupsHandler struct {
	db *gorm.DB
}

// NewFavoriteGroupsHandler constructs a FavoriteGroupsHandler.
func NewFavoriteGroupsHandler(db *gorm.DB) *FavoriteGroupsHandler {
	return &FavoriteGroupsHandler{db: db}
}

// List returns the caller's groups with how many favorites each holds.
func (h *FavoriteGroupsHandler) List(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var rows []struct {
		ID             uint64
		Name           string
		CreatedAt      time.Time
		AssistantCount int64
	}
	errFind := h.db.WithContext(c.Request.Context()).
		Model(&models.FavoriteGroup{}).
		Select("favorite_groups.id, favorite_groups.name, favorite_groups.created_at, COUNT(assistant_favorites.id) AS assistant_count").
		Joins("LEFT JOIN assistant_favorites ON assistant_favorites.group_id = favorite_groups.id AND assistant_favorites.auth_code = favorite_groups.auth_code").
		Where("favorite_groups.auth_code = ?", code.Code).
		Group("favorite_groups.id, favorite_groups.name, favorite_groups.created_at").
		Order("favorite_groups.created_at ASC, favorite_groups.id ASC").
		Scan(&rows).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		items = append(items, gin.H{
			"id":              row.ID,
			"name":            row.Name,
			"assistant_count": row.AssistantCount,
			"created_at":      row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// groupRequest is the create/rename payload.
type groupRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create adds a favorite group for the caller.
func (h *FavoriteGroupsHandler) Create(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	name, ok := bindGroupName(c)
	if !ok {
		return
	}

	row := models.FavoriteGroup{AuthCode: code.Code, Name: name}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "group name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              row.ID,
		"name":            row.Name,
		"assistant_count": 0,
		"created_at":      row.CreatedAt,
	})
}

// Update renames a favorite group owned by the caller.
func (h *FavoriteGroupsHandler) Update(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	row, ok := h.loadOwnedGroup(c, code.Code)
	if !ok {
		return
	}
	name, ok := bindGroupName(c)
	if !ok {
		return
	}

	row.Name = name
	if errSave := h.db.WithContext(c.Request.Context()).Save(row).Error; errSave != nil {
		if isUniqueViolation(errSave) {
			c.JSON(http.StatusConflict, gin.H{"error": "group name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rename group"})
		return
	}

	var count int64
	_ = h.db.WithContext(c.Request.Context()).
		Model(&models.AssistantFavorite{}).
		Where("auth_code = ? AND group_id = ?", code.Code, row.ID).
		Count(&count).Error
	c.JSON(http.StatusOK, gin.H{
		"id":              row.ID,
		"name":            row.Name,
		"assistant_count": count,
		"created_at":      row.CreatedAt,
	})
}

// Delete removes a group. Favorites assigned to it stay favorited but
// become ungrouped.
func (h *FavoriteGroupsHandler) Delete(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	row, ok := h.loadOwnedGroup(c, code.Code)
	if !ok {
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDetach := tx.Model(&models.AssistantFavorite{}).
			Where("auth_code = ? AND group_id = ?", code.Code, row.ID).
			Update("group_id", nil).Error; errDetach != nil {
			return errDetach
		}
		return tx.Delete(&models.FavoriteGroup{}, row.ID).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete group"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// assignGroupRequest is the group assignment payload. A null group_id
// moves the favorite back to ungrouped.
type assignGroupRequest struct {
	GroupID *uint64 `json:"group_id"`
}

// Assign moves one favorited assistant into a group, or out of all
// groups when group_id is null.
func (h *FavoriteGroupsHandler) Assign(c *gin.Context) {
	code := getAuthCode(c)
	if code == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	assistantID, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assistant id"})
		return
	}

	var req assignGroupRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var favorite models.AssistantFavorite
	errFind := h.db.WithContext(c.Request.Context()).
		Where("auth_code = ? AND assistant_id = ?", code.Code, assistantID).
		First(&favorite).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "assistant not favorited"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load favorite"})
		return
	}

	var groupName string
	if req.GroupID != nil {
		var group models.FavoriteGroup
		errGroup := h.db.WithContext(c.Request.Context()).
			Where("id = ? AND auth_code = ?", *req.GroupID, code.Code).
			First(&group).Error
		if errGroup != nil {
			if errors.Is(errGroup, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
			return
		}
		groupName = group.Name
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&favorite).
		Update("group_id", req.GroupID).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign group"})
		return
	}

	resp := gin.H{"assistant_id": assistantID, "group_id": req.GroupID}
	if groupName != "" {
		resp["group_name"] = groupName
	}
	c.JSON(http.StatusOK, resp)
}

// loadOwnedGroup loads the group from the :gid param, scoped to the
// caller.
func (h *FavoriteGroupsHandler) loadOwnedGroup(c *gin.Context, ownerCode string) (*models.FavoriteGroup, bool) {
	id, errParse := strconv.ParseUint(c.Param("gid"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return nil, false
	}
	var row models.FavoriteGroup
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND auth_code = ?", id, ownerCode).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return nil, false
	}
	return &row, true
}

// bindGroupName reads and sanitizes the group name payload.
func bindGroupName(c *gin.Context) (string, bool) {
	var req groupRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return "", false
	}
	name := strings.TrimSpace(req.Name)
	if len(name) > maxGroupNameLen {
		name = name[:maxGroupNameLen]
	}
	return name, true
}
