package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/lumagen/lumagen/internal/db"
	"github.com/lumagen/lumagen/internal/models"
)

// TeamHandler manages teams and their shared credit pools.
type TeamHandler struct {
	db *gorm.DB
}

// NewTeamHandler constructs a TeamHandler.
func NewTeamHandler(db *gorm.DB) *TeamHandler {
	return &TeamHandler{db: db}
}

// List returns a page of teams with their member counts.
func (h *TeamHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	q := h.db.WithContext(c.Request.Context()).Model(&models.Team{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count teams"})
		return
	}

	var rows []models.Team
	if errFind := q.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load teams"})
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		var members int64
		h.db.WithContext(c.Request.Context()).
			Model(&models.AuthCode{}).
			Where("team_id = ?", row.ID).
			Count(&members)
		items = append(items, teamView(row, members))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page})
}

// createTeamRequest is the POST payload.
type createTeamRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Credits     int64  `json:"credits"`
}

// Create adds a new team.
func (h *TeamHandler) Create(c *gin.Context) {
	var req createTeamRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if req.Credits < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credits must not be negative"})
		return
	}

	row := models.Team{Name: name, Description: req.Description, Credits: req.Credits}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "team name already exists"})
		return
	}
	c.JSON(http.StatusOK, teamView(row, 0))
}

// updateTeamRequest is the PUT payload.
type updateTeamRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Update renames a team or changes its description.
func (h *TeamHandler) Update(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}

	var req updateTeamRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.Team{}).
		Where("id = ?", row.ID).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "failed to update team"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// Delete removes an empty team. Teams with members must be emptied first so
// no code silently loses its shared pool.
func (h *TeamHandler) Delete(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}

	var members int64
	if errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.AuthCode{}).
		Where("team_id = ?", row.ID).
		Count(&members).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count members"})
		return
	}
	if members > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "team still has members"})
		return
	}

	if errDelete := h.db.WithContext(c.Request.Context()).
		Delete(&models.Team{}, row.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete team"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// TopUp adds credits to the team pool and records the adjustment.
func (h *TeamHandler) TopUp(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}

	var req topUpRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "admin team top-up"
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errUpdate := tx.Model(&models.Team{}).
			Where("id = ?", row.ID).
			Update("credits", gorm.Expr("credits + ?", req.Amount)).Error; errUpdate != nil {
			return errUpdate
		}
		teamID := row.ID
		adj := models.CreditAdjustment{
			TeamID: &teamID,
			Amount: req.Amount,
			Reason: reason,
		}
		return tx.Create(&adj).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to top up"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"topped_up": req.Amount})
}

func (h *TeamHandler) load(c *gin.Context) (*models.Team, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid team id"})
		return nil, false
	}
	var row models.Team
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load team"})
		return nil, false
	}
	return &row, true
}

func teamView(row models.Team, members int64) gin.H {
	return gin.H{
		"id":           row.ID,
		"name":         row.Name,
		"description":  row.Description,
		"credits":      row.Credits,
		"member_count": members,
		"created_at":   row.CreatedAt,
	}
}
